package mysql

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

// RunModel MySQL 模拟 Run 表映射，配置快照展平为列
type RunModel struct {
	gorm.Model
	RunID             string          `gorm:"column:run_id;type:varchar(32);uniqueIndex;not null"`
	ScenarioID        string          `gorm:"column:scenario_id;type:varchar(32);index;not null"`
	State             string          `gorm:"column:state;type:varchar(20);index;not null"`
	Symbols           string          `gorm:"column:symbols;type:text"`
	StartTime         *time.Time      `gorm:"column:start_time"`
	EndTime           *time.Time      `gorm:"column:end_time"`
	TickStepMs        int64           `gorm:"column:tick_step_ms;not null"`
	PublishIntervalMs int64           `gorm:"column:publish_interval_ms"`
	FluctuationRate   float64         `gorm:"column:fluctuation_rate;type:decimal(10,6)"`
	MarketHoursOnly   bool            `gorm:"column:market_hours_only;default:false"`
	NoiseModel        string          `gorm:"column:noise_model;type:varchar(20);not null"`
	TradingMode       string          `gorm:"column:trading_mode;type:varchar(10);not null"`
	SpreadFactor      decimal.Decimal `gorm:"column:spread_factor;type:decimal(20,8);default:0"`
	RunDurationMs     int64           `gorm:"column:run_duration_ms"`
}

func (RunModel) TableName() string { return "simulation_runs" }

// StockModel MySQL 标的表映射
type StockModel struct {
	gorm.Model
	RunID     string          `gorm:"column:run_id;type:varchar(32);uniqueIndex:idx_run_symbol;not null"`
	Symbol    string          `gorm:"column:symbol;type:varchar(20);uniqueIndex:idx_run_symbol;not null"`
	Name      string          `gorm:"column:name;type:varchar(100)"`
	CompanyID string          `gorm:"column:company_id;type:varchar(32)"`
	LastClose decimal.Decimal `gorm:"column:last_close;type:decimal(20,6);not null"`
}

func (StockModel) TableName() string { return "simulation_stocks" }

// PriceTickModel MySQL 行情表映射，只追加
type PriceTickModel struct {
	gorm.Model
	RunID     string          `gorm:"column:run_id;type:varchar(32);index:idx_tick_run_symbol;not null"`
	Symbol    string          `gorm:"column:symbol;type:varchar(20);index:idx_tick_run_symbol;not null"`
	Open      decimal.Decimal `gorm:"column:open;type:decimal(20,6);not null"`
	High      decimal.Decimal `gorm:"column:high;type:decimal(20,6);not null"`
	Low       decimal.Decimal `gorm:"column:low;type:decimal(20,6);not null"`
	Close     decimal.Decimal `gorm:"column:close;type:decimal(20,6);not null"`
	Timestamp time.Time       `gorm:"column:timestamp;not null"`
}

func (PriceTickModel) TableName() string { return "simulation_price_ticks" }

// TradeModel MySQL 成交表映射
type TradeModel struct {
	gorm.Model
	TradeID     string          `gorm:"column:trade_id;type:varchar(32);uniqueIndex;not null"`
	RunID       string          `gorm:"column:run_id;type:varchar(32);index;not null"`
	Symbol      string          `gorm:"column:symbol;type:varchar(20);not null"`
	BuyerID     string          `gorm:"column:buyer_id;type:varchar(32);not null"`
	SellerID    string          `gorm:"column:seller_id;type:varchar(32);not null"`
	BuyOrderID  string          `gorm:"column:buy_order_id;type:varchar(32)"`
	SellOrderID string          `gorm:"column:sell_order_id;type:varchar(32)"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(20,6);not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:decimal(20,6);not null"`
	Timestamp   time.Time       `gorm:"column:timestamp;not null"`
}

func (TradeModel) TableName() string { return "simulation_trades" }

// LedgerOrderModel MySQL 成交台账表映射，一笔成交两条
type LedgerOrderModel struct {
	gorm.Model
	OrderID   string          `gorm:"column:order_id;type:varchar(32);index;not null"`
	RunID     string          `gorm:"column:run_id;type:varchar(32);index;not null"`
	TraderID  string          `gorm:"column:trader_id;type:varchar(32);index;not null"`
	Symbol    string          `gorm:"column:symbol;type:varchar(20);not null"`
	Side      string          `gorm:"column:side;type:varchar(4);not null"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(20,6);not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:decimal(20,6);not null"`
	Timestamp time.Time       `gorm:"column:timestamp;not null"`
}

func (LedgerOrderModel) TableName() string { return "simulation_order_ledger" }

// --- mapping helpers ---

func toRunModel(r *domain.Run) *RunModel {
	if r == nil {
		return nil
	}
	symbols, _ := json.Marshal(r.Symbols)
	s := r.Settings()
	start, end := r.Lifecycle()
	return &RunModel{
		Model:             gorm.Model{ID: r.ID},
		RunID:             r.RunID,
		ScenarioID:        r.ScenarioID,
		State:             string(r.CurrentState()),
		Symbols:           string(symbols),
		StartTime:         start,
		EndTime:           end,
		TickStepMs:        s.TickStep.Milliseconds(),
		PublishIntervalMs: s.PublishInterval.Milliseconds(),
		FluctuationRate:   s.FluctuationRate,
		MarketHoursOnly:   s.MarketHoursOnly,
		NoiseModel:        string(s.NoiseModel),
		TradingMode:       string(s.TradingMode),
		SpreadFactor:      s.SpreadFactor,
		RunDurationMs:     s.RunDuration.Milliseconds(),
	}
}

func toRun(m *RunModel) (*domain.Run, error) {
	if m == nil {
		return nil, nil
	}
	var symbols []string
	if m.Symbols != "" {
		if err := json.Unmarshal([]byte(m.Symbols), &symbols); err != nil {
			return nil, err
		}
	}
	r := &domain.Run{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		RunID:      m.RunID,
		ScenarioID: m.ScenarioID,
		State:      domain.RunState(m.State),
		Symbols:    symbols,
		StartTime:  m.StartTime,
		EndTime:    m.EndTime,
	}
	settings := &domain.RunSettings{
		TickStep:        time.Duration(m.TickStepMs) * time.Millisecond,
		PublishInterval: time.Duration(m.PublishIntervalMs) * time.Millisecond,
		FluctuationRate: m.FluctuationRate,
		MarketHoursOnly: m.MarketHoursOnly,
		NoiseModel:      domain.NoiseModel(m.NoiseModel),
		TradingMode:     domain.TradingMode(m.TradingMode),
		SpreadFactor:    m.SpreadFactor,
		RunDuration:     time.Duration(m.RunDurationMs) * time.Millisecond,
	}
	if err := r.ApplySettings(settings); err != nil {
		return nil, err
	}
	r.InitFSM()
	return r, nil
}

func toStockModel(s *domain.Stock) *StockModel {
	return &StockModel{
		RunID:     s.RunID,
		Symbol:    s.Symbol,
		Name:      s.Name,
		CompanyID: s.CompanyID,
		LastClose: s.LastClose,
	}
}

func toStock(m *StockModel) *domain.Stock {
	return &domain.Stock{
		RunID:     m.RunID,
		Symbol:    m.Symbol,
		Name:      m.Name,
		CompanyID: m.CompanyID,
		LastClose: m.LastClose,
	}
}

func toTickModel(t *domain.PriceTick) *PriceTickModel {
	return &PriceTickModel{
		RunID:     t.RunID,
		Symbol:    t.Symbol,
		Open:      t.Open,
		High:      t.High,
		Low:       t.Low,
		Close:     t.Close,
		Timestamp: t.Timestamp,
	}
}

func toTick(m *PriceTickModel) *domain.PriceTick {
	return &domain.PriceTick{
		RunID:     m.RunID,
		Symbol:    m.Symbol,
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     m.Close,
		Timestamp: m.Timestamp,
	}
}

func toTradeModel(t *domain.Trade) *TradeModel {
	return &TradeModel{
		TradeID:     t.TradeID,
		RunID:       t.RunID,
		Symbol:      t.Symbol,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price,
		Quantity:    t.Quantity,
		Timestamp:   t.Timestamp,
	}
}

func toTrade(m *TradeModel) *domain.Trade {
	return &domain.Trade{
		TradeID:     m.TradeID,
		RunID:       m.RunID,
		Symbol:      m.Symbol,
		BuyerID:     m.BuyerID,
		SellerID:    m.SellerID,
		BuyOrderID:  m.BuyOrderID,
		SellOrderID: m.SellOrderID,
		Price:       m.Price,
		Quantity:    m.Quantity,
		Timestamp:   m.Timestamp,
	}
}

func toLedgerModel(o *domain.Order) *LedgerOrderModel {
	return &LedgerOrderModel{
		OrderID:   o.OrderID,
		RunID:     o.RunID,
		TraderID:  o.TraderID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Price:     o.Price,
		Quantity:  o.Quantity,
		Timestamp: o.Timestamp,
	}
}
