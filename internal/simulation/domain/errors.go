package domain

import "errors"

// 引擎错误分类：配置错误在创建时即失败；非法状态流转被拒绝但不视为故障；
// 瞬时 IO 错误由调用方记录日志后继续。
var (
	// ErrUnknownNoiseModel 未注册的噪声模型（配置错误，创建时失败，不做静默回退）
	ErrUnknownNoiseModel = errors.New("unknown noise model")
	// ErrInvalidTransition 非法状态流转，状态保持不变
	ErrInvalidTransition = errors.New("invalid run state transition")
	// ErrRunNotFound 模拟 Run 不存在
	ErrRunNotFound = errors.New("run not found")
	// ErrNoPriceData 标的缺少行情数据，本轮跳过
	ErrNoPriceData = errors.New("no price data for symbol")
	// ErrInvalidOrder 订单字段非法
	ErrInvalidOrder = errors.New("invalid order")
	// ErrStaticRun 静态定价 Run 不接受订单
	ErrStaticRun = errors.New("run does not accept orders in static trading mode")
)
