package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) domain.StockRepository {
	return &stockRepository{db: db}
}

// Save 按 (run_id, symbol) 幂等落库
func (r *stockRepository) Save(ctx context.Context, s *domain.Stock) error {
	m := toStockModel(s)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "company_id", "last_close", "updated_at"}),
	}).Create(m).Error
}

func (r *stockRepository) LoadStocks(ctx context.Context, runID string) ([]*domain.Stock, error) {
	var models []StockModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("symbol ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	stocks := make([]*domain.Stock, 0, len(models))
	for i := range models {
		stocks = append(stocks, toStock(&models[i]))
	}
	return stocks, nil
}
