package domain

import "context"

// 引擎只经由这些窄接口触达存储与传输，自身不内嵌任何存储逻辑。

// RunRepository Run 仓储接口
type RunRepository interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, runID string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	ListByState(ctx context.Context, state RunState) ([]*Run, error)
}

// StockRepository 标的仓储接口
type StockRepository interface {
	Save(ctx context.Context, s *Stock) error
	LoadStocks(ctx context.Context, runID string) ([]*Stock, error)
}

// PriceTickRepository 行情仓储接口，只追加；LastTick 返回 nil 表示尚无记录
type PriceTickRepository interface {
	Append(ctx context.Context, t *PriceTick) error
	LastTick(ctx context.Context, runID, symbol string) (*PriceTick, error)
	Recent(ctx context.Context, runID, symbol string, limit int) ([]*PriceTick, error)
}

// TradeRepository 成交与台账仓储接口
type TradeRepository interface {
	Save(ctx context.Context, t *Trade) error
	SaveLedger(ctx context.Context, orders []*Order) error
	Recent(ctx context.Context, runID string, limit int) ([]*Trade, error)
}

// RunStateStore 外部持久化的 Run 状态读写口，监控循环以此为准轮询
type RunStateStore interface {
	ReadState(ctx context.Context, runID string) (RunState, error)
	WriteState(ctx context.Context, runID string, state RunState) error
}

// MarketDataPublisher 广播口：引擎只管调用，传输层是外部协作者
type MarketDataPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}
