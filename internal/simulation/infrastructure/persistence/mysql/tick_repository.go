package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

type tickRepository struct {
	db *gorm.DB
}

func NewTickRepository(db *gorm.DB) domain.PriceTickRepository {
	return &tickRepository{db: db}
}

func (r *tickRepository) Append(ctx context.Context, t *domain.PriceTick) error {
	return r.db.WithContext(ctx).Create(toTickModel(t)).Error
}

// LastTick 尚无记录返回 (nil, nil)
func (r *tickRepository) LastTick(ctx context.Context, runID, symbol string) (*domain.PriceTick, error) {
	var m PriceTickModel
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND symbol = ?", runID, symbol).
		Order("id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toTick(&m), nil
}

// Recent 取最近 limit 根，按时间正序返回
func (r *tickRepository) Recent(ctx context.Context, runID, symbol string, limit int) ([]*domain.PriceTick, error) {
	var models []PriceTickModel
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND symbol = ?", runID, symbol).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	ticks := make([]*domain.PriceTick, len(models))
	for i := range models {
		ticks[len(models)-1-i] = toTick(&models[i])
	}
	return ticks, nil
}
