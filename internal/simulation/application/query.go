package application

import (
	"context"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

const defaultQueryLimit = 100

// QueryService 查询侧门面，全部走仓储只读路径
type QueryService struct {
	runs   domain.RunRepository
	ticks  domain.PriceTickRepository
	trades domain.TradeRepository
}

func NewQueryService(runs domain.RunRepository, ticks domain.PriceTickRepository, trades domain.TradeRepository) *QueryService {
	return &QueryService{runs: runs, ticks: ticks, trades: trades}
}

func (q *QueryService) GetRun(ctx context.Context, runID string) (*RunDTO, error) {
	run, err := q.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return toRunDTO(run), nil
}

func (q *QueryService) ListRuns(ctx context.Context, limit int) ([]*RunDTO, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	runs, err := q.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*RunDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, toRunDTO(r))
	}
	return out, nil
}

func (q *QueryService) RecentTicks(ctx context.Context, runID, symbol string, limit int) ([]*TickDTO, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	ticks, err := q.ticks.Recent(ctx, runID, symbol, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*TickDTO, 0, len(ticks))
	for _, t := range ticks {
		out = append(out, toTickDTO(t))
	}
	return out, nil
}

func (q *QueryService) RecentTrades(ctx context.Context, runID string, limit int) ([]*TradeDTO, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	trades, err := q.trades.Recent(ctx, runID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*TradeDTO, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeDTO(t))
	}
	return out, nil
}
