package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/quantclass/stocksim/internal/simulation/application"
	"github.com/quantclass/stocksim/internal/simulation/domain"
)

// OrderHandler 消费交易端提交的订单消息，转交调度器的经纪层
type OrderHandler struct {
	svc    *application.SimulationService
	logger *slog.Logger
}

func NewOrderHandler(svc *application.SimulationService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

func (h *OrderHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var payload struct {
		RunID    string  `json:"run_id"`
		TraderID string  `json:"trader_id"`
		Symbol   string  `json:"symbol"`
		Side     string  `json:"side"`
		Price    float64 `json:"price"`
		Quantity float64 `json:"quantity"`
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal order message", "error", err)
		return err
	}
	if payload.RunID == "" {
		return nil
	}

	cmd := &application.OrderCommand{
		TraderID: payload.TraderID,
		Symbol:   payload.Symbol,
		Side:     payload.Side,
		Price:    payload.Price,
		Quantity: payload.Quantity,
	}
	err := h.svc.RegisterOrder(ctx, payload.RunID, cmd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrStaticRun),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrNoPriceData):
		// 业务性拒绝：记日志但不重投
		h.logger.WarnContext(ctx, "order rejected", "run_id", payload.RunID,
			"trader_id", payload.TraderID, "reason", err)
		return nil
	default:
		return err
	}
}
