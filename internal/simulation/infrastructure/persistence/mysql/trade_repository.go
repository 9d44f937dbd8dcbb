package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

// Save 按 trade_id 幂等，重放不产生重复成交
func (r *tradeRepository) Save(ctx context.Context, t *domain.Trade) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).Create(toTradeModel(t)).Error
}

func (r *tradeRepository) SaveLedger(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	models := make([]*LedgerOrderModel, 0, len(orders))
	for _, o := range orders {
		models = append(models, toLedgerModel(o))
	}
	return r.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

// Recent 取最近 limit 笔，按时间正序返回
func (r *tradeRepository) Recent(ctx context.Context, runID string, limit int) ([]*domain.Trade, error) {
	var models []TradeModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	trades := make([]*domain.Trade, len(models))
	for i := range models {
		trades[len(models)-1-i] = toTrade(&models[i])
	}
	return trades, nil
}
