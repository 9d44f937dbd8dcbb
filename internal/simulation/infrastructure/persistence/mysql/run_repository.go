package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) domain.RunRepository {
	return &runRepository{db: db}
}

// Save 按 run_id 幂等落库，重复保存更新状态与配置列
func (r *runRepository) Save(ctx context.Context, run *domain.Run) error {
	m := toRunModel(run)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state", "symbols", "start_time", "end_time",
			"tick_step_ms", "publish_interval_ms", "fluctuation_rate",
			"market_hours_only", "noise_model", "trading_mode",
			"spread_factor", "run_duration_ms", "updated_at",
		}),
	}).Create(m).Error
}

// Get 未找到返回 (nil, nil)，由上层映射为 ErrRunNotFound
func (r *runRepository) Get(ctx context.Context, runID string) (*domain.Run, error) {
	var m RunModel
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toRun(&m)
}

func (r *runRepository) List(ctx context.Context, limit int) ([]*domain.Run, error) {
	var models []RunModel
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toRuns(models)
}

func (r *runRepository) ListByState(ctx context.Context, state domain.RunState) ([]*domain.Run, error) {
	var models []RunModel
	err := r.db.WithContext(ctx).Where("state = ?", string(state)).Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toRuns(models)
}

func toRuns(models []RunModel) ([]*domain.Run, error) {
	runs := make([]*domain.Run, 0, len(models))
	for i := range models {
		run, err := toRun(&models[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
