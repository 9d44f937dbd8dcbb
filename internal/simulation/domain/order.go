package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide 买卖方向
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Order 外部下单接口送入撮合队列的订单，部分成交时仅就地拆分剩余数量
type Order struct {
	ID        uint            `json:"id"`
	OrderID   string          `json:"order_id"`
	RunID     string          `json:"run_id"`
	TraderID  string          `json:"trader_id"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate 校验订单字段，数量和价格必须为正
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s", ErrInvalidOrder, o.Quantity)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: price %s", ErrInvalidOrder, o.Price)
	}
	return nil
}

// Trade 一次成功撮合的产出，创建后不可变
type Trade struct {
	ID          uint            `json:"id"`
	TradeID     string          `json:"trade_id"`
	RunID       string          `json:"run_id"`
	Symbol      string          `json:"symbol"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Timestamp   time.Time       `json:"timestamp"`
}
