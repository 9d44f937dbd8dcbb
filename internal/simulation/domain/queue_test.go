package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(trader string, side OrderSide, price, qty int64) *Order {
	return &Order{
		OrderID:   trader + "-order",
		RunID:     "RUN1",
		TraderID:  trader,
		Symbol:    "ACME",
		Side:      side,
		Price:     decimal.NewFromInt(price),
		Quantity:  decimal.NewFromInt(qty),
		Timestamp: time.Now(),
	}
}

func TestMatchExactFill(t *testing.T) {
	q := NewMatchingQueue("ACME")
	q.EnqueueBuy(newOrder("alice", SideBuy, 100, 10))
	q.EnqueueSell(newOrder("bob", SideSell, 100, 10))

	res := q.Match()

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.True(t, trade.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, trade.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "alice", trade.BuyerID)
	assert.Equal(t, "bob", trade.SellerID)
	assert.Equal(t, 0, q.BuyLen())
	assert.Equal(t, 0, q.SellLen())

	// 每笔成交产出一买一卖两条台账
	require.Len(t, res.Ledger, 2)
	assert.Equal(t, SideBuy, res.Ledger[0].Side)
	assert.Equal(t, SideSell, res.Ledger[1].Side)
}

func TestMatchPartialFillRequeuesBuyer(t *testing.T) {
	q := NewMatchingQueue("ACME")
	q.EnqueueBuy(newOrder("alice", SideBuy, 100, 10))
	q.EnqueueSell(newOrder("bob", SideSell, 100, 5))

	res := q.Match()

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, res.Trades[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, q.BuyLen())
	assert.Equal(t, 0, q.SellLen())
}

func TestMatchPartialFillRequeuesSeller(t *testing.T) {
	q := NewMatchingQueue("ACME")
	q.EnqueueBuy(newOrder("alice", SideBuy, 100, 3))
	q.EnqueueSell(newOrder("bob", SideSell, 100, 8))
	q.EnqueueBuy(newOrder("carol", SideBuy, 100, 5))

	res := q.Match()

	// 卖方剩余 5 放回队头，被 carol 的买单吃掉
	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.True(t, res.Trades[1].Quantity.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 0, q.BuyLen())
	assert.Equal(t, 0, q.SellLen())
}

func TestMatchMidpointPrice(t *testing.T) {
	q := NewMatchingQueue("ACME")
	q.EnqueueBuy(newOrder("alice", SideBuy, 110, 10))
	q.EnqueueSell(newOrder("bob", SideSell, 90, 10))

	res := q.Match()

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestMatchNoCrossConservesQuantity(t *testing.T) {
	q := NewMatchingQueue("ACME")
	q.EnqueueBuy(newOrder("alice", SideBuy, 90, 10))
	q.EnqueueSell(newOrder("bob", SideSell, 100, 10))

	res := q.Match()

	// 不交叉的队头对不再被丢弃，双方保留在各自队列
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, q.BuyLen())
	assert.Equal(t, 1, q.SellLen())
}

func TestMatchFIFOPriority(t *testing.T) {
	q := NewMatchingQueue("ACME")
	q.EnqueueBuy(newOrder("first", SideBuy, 100, 5))
	q.EnqueueBuy(newOrder("second", SideBuy, 120, 5))
	q.EnqueueSell(newOrder("bob", SideSell, 100, 5))

	res := q.Match()

	// 时间优先：先到的买单成交，哪怕后到者出价更高
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "first", res.Trades[0].BuyerID)
	assert.Equal(t, 1, q.BuyLen())
}
