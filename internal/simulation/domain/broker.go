package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceLookup 经纪层依赖的行情查询口，由 PriceTickRepository 满足
type PriceLookup interface {
	LastTick(ctx context.Context, runID, symbol string) (*PriceTick, error)
}

// Broker 按标的持有撮合队列，入队前施加买卖价差与价格冲击调整。
// 标的统一以 ticker 作为键，数值主键只存在于持久化层。
type Broker struct {
	runID        string
	spreadFactor decimal.Decimal
	prices       PriceLookup

	mu      sync.Mutex
	queues  map[string]*MatchingQueue
	bestBid map[string]decimal.Decimal
	bestAsk map[string]decimal.Decimal
}

func NewBroker(runID string, spreadFactor decimal.Decimal, prices PriceLookup) *Broker {
	return &Broker{
		runID:        runID,
		spreadFactor: spreadFactor,
		prices:       prices,
		queues:       make(map[string]*MatchingQueue),
		bestBid:      make(map[string]decimal.Decimal),
		bestAsk:      make(map[string]decimal.Decimal),
	}
}

// Register 调整客户端报价后入队。买方支付 mid+spread/2，卖方得到 mid−spread/2；
// 调整后的买价越过最优卖价时抬升 bestAsk（价格冲击），卖方向对称。
// 标的没有任何行情记录时返回 ErrNoPriceData，调用方跳过该单并告警。
func (b *Broker) Register(ctx context.Context, o *Order) error {
	if err := o.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureQuote(ctx, o.Symbol); err != nil {
		return err
	}

	two := decimal.NewFromInt(2)
	bid, ask := b.bestBid[o.Symbol], b.bestAsk[o.Symbol]
	mid := bid.Add(ask).Div(two)
	half := b.spreadFactor.Mul(o.Quantity).Div(two)

	adjusted := *o
	switch o.Side {
	case SideBuy:
		adjusted.Price = mid.Add(half)
		if adjusted.Price.GreaterThan(ask) {
			b.bestAsk[o.Symbol] = adjusted.Price
		}
	case SideSell:
		adjusted.Price = mid.Sub(half)
		if adjusted.Price.LessThan(bid) {
			b.bestBid[o.Symbol] = adjusted.Price
		}
	}

	q := b.queue(o.Symbol)
	if adjusted.Side == SideBuy {
		q.EnqueueBuy(&adjusted)
	} else {
		q.EnqueueSell(&adjusted)
	}
	return nil
}

// ProcessAll 每个调度 tick 对所有标的队列排空一轮撮合（DYNAMIC 模式）。
// 按标的名排序遍历，保证结果可复现。
func (b *Broker) ProcessAll(ctx context.Context) *MatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbols := make([]string, 0, len(b.queues))
	for s := range b.queues {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	combined := &MatchResult{}
	for _, s := range symbols {
		res := b.queues[s].Match()
		combined.Trades = append(combined.Trades, res.Trades...)
		combined.Ledger = append(combined.Ledger, res.Ledger...)
	}
	return combined
}

// BestQuote 返回当前最优买卖价（含价格冲击后的值）
func (b *Broker) BestQuote(symbol string) (bid, ask decimal.Decimal, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, okB := b.bestBid[symbol]
	ask, okA := b.bestAsk[symbol]
	return bid, ask, okB && okA
}

func (b *Broker) queue(symbol string) *MatchingQueue {
	q, ok := b.queues[symbol]
	if !ok {
		q = NewMatchingQueue(symbol)
		b.queues[symbol] = q
	}
	return q
}

// ensureQuote 用最近一根 PriceTick 的 low/high 初始化 bestBid/bestAsk
func (b *Broker) ensureQuote(ctx context.Context, symbol string) error {
	if _, ok := b.bestBid[symbol]; ok {
		return nil
	}
	tick, err := b.prices.LastTick(ctx, b.runID, symbol)
	if err != nil {
		return fmt.Errorf("lookup last tick for %s: %w", symbol, err)
	}
	if tick == nil {
		return fmt.Errorf("%w: %s", ErrNoPriceData, symbol)
	}
	b.bestBid[symbol] = tick.Low
	b.bestAsk[symbol] = tick.High
	return nil
}
