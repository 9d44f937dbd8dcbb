package application

import (
	"time"

	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/shopspring/decimal"
)

// StockInit 建 Run 时的标的初始化参数
type StockInit struct {
	Symbol       string  `json:"symbol" binding:"required"`
	Name         string  `json:"name"`
	CompanyID    string  `json:"company_id"`
	InitialPrice float64 `json:"initial_price" binding:"required,gt=0"`
}

// SettingsCommand 配置参数，建 Run 与热更共用
type SettingsCommand struct {
	TickStepMs        int64   `json:"tick_step_ms" binding:"required,gt=0"`
	PublishIntervalMs int64   `json:"publish_interval_ms"`
	FluctuationRate   float64 `json:"fluctuation_rate"`
	MarketHoursOnly   bool    `json:"market_hours_only"`
	NoiseModel        string  `json:"noise_model" binding:"required"`
	TradingMode       string  `json:"trading_mode" binding:"required"`
	SpreadFactor      float64 `json:"spread_factor"`
	RunDurationMs     int64   `json:"run_duration_ms"`
}

func (c *SettingsCommand) toSettings() *domain.RunSettings {
	return &domain.RunSettings{
		TickStep:        time.Duration(c.TickStepMs) * time.Millisecond,
		PublishInterval: time.Duration(c.PublishIntervalMs) * time.Millisecond,
		FluctuationRate: c.FluctuationRate,
		MarketHoursOnly: c.MarketHoursOnly,
		NoiseModel:      domain.NoiseModel(c.NoiseModel),
		TradingMode:     domain.TradingMode(c.TradingMode),
		SpreadFactor:    decimal.NewFromFloat(c.SpreadFactor),
		RunDuration:     time.Duration(c.RunDurationMs) * time.Millisecond,
	}
}

// CreateRunCommand 创建一次场景模拟
type CreateRunCommand struct {
	ScenarioID string          `json:"scenario_id" binding:"required"`
	Stocks     []StockInit     `json:"stocks" binding:"required,min=1,dive"`
	Settings   SettingsCommand `json:"settings" binding:"required"`
}

// OrderCommand 提交到 DYNAMIC Run 的订单
type OrderCommand struct {
	TraderID string  `json:"trader_id" binding:"required"`
	Symbol   string  `json:"symbol" binding:"required"`
	Side     string  `json:"side" binding:"required,oneof=BUY SELL"`
	Price    float64 `json:"price" binding:"required,gt=0"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}
