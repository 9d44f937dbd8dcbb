// Package domain 股票模拟游戏引擎的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle 噪声模型生成的单根 OHLC 蜡烛，生成过程使用 float64，入库前转 decimal
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// PriceTick 单个标的在一个 tick 上的不可变行情记录
// 持久化映射在基础设施层完成
type PriceTick struct {
	ID        uint            `json:"id"`
	RunID     string          `json:"run_id"`
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewPriceTick 由蜡烛构造行情记录
func NewPriceTick(runID, symbol string, c Candle, ts time.Time) *PriceTick {
	return &PriceTick{
		RunID:     runID,
		Symbol:    symbol,
		Open:      decimal.NewFromFloat(c.Open),
		High:      decimal.NewFromFloat(c.High),
		Low:       decimal.NewFromFloat(c.Low),
		Close:     decimal.NewFromFloat(c.Close),
		Timestamp: ts,
	}
}

// Stock 引擎视角下的可变价格单元，ticker 为全局唯一键
type Stock struct {
	ID        uint            `json:"id"`
	RunID     string          `json:"run_id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	CompanyID string          `json:"company_id"`
	LastClose decimal.Decimal `json:"last_close"`
}
