package application

import (
	"time"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

// RunDTO 对外展示的 Run 视图
type RunDTO struct {
	RunID      string      `json:"run_id"`
	ScenarioID string      `json:"scenario_id"`
	State      string      `json:"state"`
	Symbols    []string    `json:"symbols"`
	Settings   SettingsDTO `json:"settings"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SettingsDTO 配置快照视图，时长字段以毫秒表达
type SettingsDTO struct {
	TickStepMs        int64   `json:"tick_step_ms"`
	PublishIntervalMs int64   `json:"publish_interval_ms"`
	FluctuationRate   float64 `json:"fluctuation_rate"`
	MarketHoursOnly   bool    `json:"market_hours_only"`
	NoiseModel        string  `json:"noise_model"`
	TradingMode       string  `json:"trading_mode"`
	SpreadFactor      string  `json:"spread_factor"`
	RunDurationMs     int64   `json:"run_duration_ms"`
}

// TickDTO 单根蜡烛视图
type TickDTO struct {
	Symbol    string    `json:"symbol"`
	Open      string    `json:"open"`
	High      string    `json:"high"`
	Low       string    `json:"low"`
	Close     string    `json:"close"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeDTO 单笔成交视图
type TradeDTO struct {
	TradeID   string    `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	Price     string    `json:"price"`
	Quantity  string    `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func toSettingsDTO(s *domain.RunSettings) SettingsDTO {
	return SettingsDTO{
		TickStepMs:        s.TickStep.Milliseconds(),
		PublishIntervalMs: s.PublishInterval.Milliseconds(),
		FluctuationRate:   s.FluctuationRate,
		MarketHoursOnly:   s.MarketHoursOnly,
		NoiseModel:        string(s.NoiseModel),
		TradingMode:       string(s.TradingMode),
		SpreadFactor:      s.SpreadFactor.String(),
		RunDurationMs:     s.RunDuration.Milliseconds(),
	}
}

func toRunDTO(r *domain.Run) *RunDTO {
	start, end := r.Lifecycle()
	return &RunDTO{
		RunID:      r.RunID,
		ScenarioID: r.ScenarioID,
		State:      string(r.CurrentState()),
		Symbols:    r.Symbols,
		Settings:   toSettingsDTO(r.Settings()),
		StartTime:  start,
		EndTime:    end,
		CreatedAt:  r.CreatedAt,
	}
}

func toTickDTO(t *domain.PriceTick) *TickDTO {
	return &TickDTO{
		Symbol:    t.Symbol,
		Open:      t.Open.String(),
		High:      t.High.String(),
		Low:       t.Low.String(),
		Close:     t.Close.String(),
		Timestamp: t.Timestamp,
	}
}

func toTradeDTO(t *domain.Trade) *TradeDTO {
	return &TradeDTO{
		TradeID:   t.TradeID,
		Symbol:    t.Symbol,
		BuyerID:   t.BuyerID,
		SellerID:  t.SellerID,
		Price:     t.Price.String(),
		Quantity:  t.Quantity.String(),
		Timestamp: t.Timestamp,
	}
}
