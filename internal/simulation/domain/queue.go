package domain

import (
	"container/list"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
)

// MatchingQueue 单标的双端 FIFO 撮合队列。刻意不做价格档位排序，
// 插入顺序即优先级——这是教学游戏的简化模型，不是真实限价簿。
type MatchingQueue struct {
	symbol string
	buys   *list.List // 存储 *Order
	sells  *list.List
}

// MatchResult 一轮撮合的产出：成交列表及对应的审计台账订单（每笔成交一买一卖）
type MatchResult struct {
	Trades []*Trade
	Ledger []*Order
}

func NewMatchingQueue(symbol string) *MatchingQueue {
	return &MatchingQueue{
		symbol: symbol,
		buys:   list.New(),
		sells:  list.New(),
	}
}

func (q *MatchingQueue) Symbol() string { return q.symbol }

// EnqueueBuy 买单入队尾
func (q *MatchingQueue) EnqueueBuy(o *Order) {
	q.buys.PushBack(o)
}

// EnqueueSell 卖单入队尾
func (q *MatchingQueue) EnqueueSell(o *Order) {
	q.sells.PushBack(o)
}

func (q *MatchingQueue) BuyLen() int  { return q.buys.Len() }
func (q *MatchingQueue) SellLen() int { return q.sells.Len() }

// Match 反复弹出双边队头撮合，直到一边为空或队头不交叉。
// 队头不交叉时双方放回队头并结束本轮——早期版本直接丢弃这对订单，
// 会凭空蒸发流动性，这里保证数量守恒。
// 部分成交的一方按原价携剩余数量放回队头，下一轮优先。
func (q *MatchingQueue) Match() *MatchResult {
	result := &MatchResult{}
	two := decimal.NewFromInt(2)

	for q.buys.Len() > 0 && q.sells.Len() > 0 {
		buy := q.buys.Remove(q.buys.Front()).(*Order)
		sell := q.sells.Remove(q.sells.Front()).(*Order)

		if buy.Price.LessThan(sell.Price) {
			q.buys.PushFront(buy)
			q.sells.PushFront(sell)
			break
		}

		price := buy.Price.Add(sell.Price).Div(two)
		qty := decimal.Min(buy.Quantity, sell.Quantity)
		now := time.Now()

		trade := &Trade{
			TradeID:     fmt.Sprintf("T%d", idgen.GenID()),
			RunID:       buy.RunID,
			Symbol:      q.symbol,
			BuyerID:     buy.TraderID,
			SellerID:    sell.TraderID,
			BuyOrderID:  buy.OrderID,
			SellOrderID: sell.OrderID,
			Price:       price,
			Quantity:    qty,
			Timestamp:   now,
		}
		result.Trades = append(result.Trades, trade)
		result.Ledger = append(result.Ledger,
			&Order{
				OrderID:   fmt.Sprintf("L%d", idgen.GenID()),
				RunID:     buy.RunID,
				TraderID:  buy.TraderID,
				Symbol:    q.symbol,
				Side:      SideBuy,
				Price:     price,
				Quantity:  qty,
				Timestamp: now,
			},
			&Order{
				OrderID:   fmt.Sprintf("L%d", idgen.GenID()),
				RunID:     sell.RunID,
				TraderID:  sell.TraderID,
				Symbol:    q.symbol,
				Side:      SideSell,
				Price:     price,
				Quantity:  qty,
				Timestamp: now,
			},
		)

		switch {
		case sell.Quantity.GreaterThan(buy.Quantity):
			sell.Quantity = sell.Quantity.Sub(qty)
			q.sells.PushFront(sell)
		case buy.Quantity.GreaterThan(sell.Quantity):
			buy.Quantity = buy.Quantity.Sub(qty)
			q.buys.PushFront(buy)
		}
	}

	return result
}
