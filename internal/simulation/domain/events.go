package domain

import "time"

const (
	RunCreatedEventType      = "simulation.run.created"
	RunStateChangedEventType = "simulation.run.state_changed"
	SettingsAppliedEventType = "simulation.run.settings_applied"
	PriceTickGeneratedType   = "simulation.price.generated"
	TradeExecutedEventType   = "simulation.trade.executed"
	OrderSubmittedTopic      = "trading.order.submitted"
)

// BroadcastTopic 行情推送主题，每个 Run 一个
func BroadcastTopic(runID string) string {
	return "run-" + runID
}

// RunCreatedEvent Run 创建事件
type RunCreatedEvent struct {
	RunID      string    `json:"run_id"`
	ScenarioID string    `json:"scenario_id"`
	NoiseModel string    `json:"noise_model"`
	Mode       string    `json:"trading_mode"`
	Symbols    []string  `json:"symbols"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunStateChangedEvent 状态流转事件
type RunStateChangedEvent struct {
	RunID     string    `json:"run_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// SettingsAppliedEvent 配置热更事件
type SettingsAppliedEvent struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceTickBroadcast 推送到 run-<id> 主题的行情消息
type PriceTickBroadcast struct {
	RunID     string `json:"run_id"`
	Symbol    string `json:"symbol"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Timestamp int64  `json:"timestamp"`
}

// TradeBroadcast 推送到 run-<id> 主题的成交消息
type TradeBroadcast struct {
	RunID     string `json:"run_id"`
	TradeID   string `json:"trade_id"`
	Symbol    string `json:"symbol"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}
