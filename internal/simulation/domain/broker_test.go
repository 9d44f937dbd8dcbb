package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePriceLookup 以固定 low/high 应答的行情查询桩
type fakePriceLookup struct {
	ticks map[string]*PriceTick
}

func (f *fakePriceLookup) LastTick(_ context.Context, _ string, symbol string) (*PriceTick, error) {
	return f.ticks[symbol], nil
}

func quotedLookup(symbol string, low, high int64) *fakePriceLookup {
	return &fakePriceLookup{ticks: map[string]*PriceTick{
		symbol: {
			RunID:     "RUN1",
			Symbol:    symbol,
			Low:       decimal.NewFromInt(low),
			High:      decimal.NewFromInt(high),
			Timestamp: time.Now(),
		},
	}}
}

func TestBrokerSpreadAdjustment(t *testing.T) {
	// bestBid=98, bestAsk=102 → mid=100；spreadFactor=0.2, qty=10 → spread=2
	b := NewBroker("RUN1", decimal.NewFromFloat(0.2), quotedLookup("ACME", 98, 102))
	ctx := context.Background()

	require.NoError(t, b.Register(ctx, newOrder("alice", SideBuy, 100, 10)))
	require.NoError(t, b.Register(ctx, newOrder("bob", SideSell, 100, 10)))

	res := b.ProcessAll(ctx)
	require.Len(t, res.Trades, 1)
	// 买方入队价 101，卖方入队价 99，成交于中点 100
	assert.True(t, res.Trades[0].Price.Equal(decimal.NewFromInt(100)),
		"expected 100, got %s", res.Trades[0].Price)
}

func TestBrokerPriceImpactRaisesAsk(t *testing.T) {
	b := NewBroker("RUN1", decimal.NewFromInt(1), quotedLookup("ACME", 98, 102))
	ctx := context.Background()

	// spread = 1*10 = 10，买方入队价 mid+5 = 105 > bestAsk 102 → 抬升 ask
	require.NoError(t, b.Register(ctx, newOrder("alice", SideBuy, 100, 10)))

	_, ask, ok := b.BestQuote("ACME")
	require.True(t, ok)
	assert.True(t, ask.Equal(decimal.NewFromInt(105)), "expected ask 105, got %s", ask)
}

func TestBrokerPriceImpactLowersBid(t *testing.T) {
	b := NewBroker("RUN1", decimal.NewFromInt(1), quotedLookup("ACME", 98, 102))
	ctx := context.Background()

	require.NoError(t, b.Register(ctx, newOrder("bob", SideSell, 100, 10)))

	bid, _, ok := b.BestQuote("ACME")
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.NewFromInt(95)), "expected bid 95, got %s", bid)
}

func TestBrokerRejectsSymbolWithoutPriceData(t *testing.T) {
	b := NewBroker("RUN1", decimal.NewFromFloat(0.1), &fakePriceLookup{ticks: map[string]*PriceTick{}})

	err := b.Register(context.Background(), newOrder("alice", SideBuy, 100, 10))
	assert.ErrorIs(t, err, ErrNoPriceData)
}

func TestBrokerRejectsInvalidOrder(t *testing.T) {
	b := NewBroker("RUN1", decimal.NewFromFloat(0.1), quotedLookup("ACME", 98, 102))

	bad := newOrder("alice", SideBuy, 100, 10)
	bad.Quantity = decimal.NewFromInt(-1)
	err := b.Register(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestBrokerProcessAllDrainsEverySymbol(t *testing.T) {
	lookup := &fakePriceLookup{ticks: map[string]*PriceTick{}}
	for _, s := range []string{"ACME", "ZEN"} {
		lookup.ticks[s] = &PriceTick{
			RunID: "RUN1", Symbol: s,
			Low: decimal.NewFromInt(99), High: decimal.NewFromInt(101),
		}
	}
	b := NewBroker("RUN1", decimal.Zero, lookup)
	ctx := context.Background()

	for _, s := range []string{"ACME", "ZEN"} {
		buy := newOrder("alice", SideBuy, 100, 5)
		buy.Symbol = s
		sell := newOrder("bob", SideSell, 100, 5)
		sell.Symbol = s
		require.NoError(t, b.Register(ctx, buy))
		require.NoError(t, b.Register(ctx, sell))
	}

	res := b.ProcessAll(ctx)
	require.Len(t, res.Trades, 2)
	// 遍历按标的名排序，结果稳定
	assert.Equal(t, "ACME", res.Trades[0].Symbol)
	assert.Equal(t, "ZEN", res.Trades[1].Symbol)
}
