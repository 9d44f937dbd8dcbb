package domain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
	"github.com/wyfcoding/pkg/idgen"
)

// RunState 模拟 Run 的生命周期状态
type RunState string

const (
	StateInitialized RunState = "INITIALIZED"
	StateCreated     RunState = "CREATED"
	StatePublished   RunState = "PUBLISHED"
	StateOngoing     RunState = "ONGOING"
	StateStopped     RunState = "STOPPED"
	StateFinished    RunState = "FINISHED"
)

// TradingMode 定价模式：STATIC 噪声模型直接出价，DYNAMIC 经纪撮合出价
type TradingMode string

const (
	ModeStatic  TradingMode = "STATIC"
	ModeDynamic TradingMode = "DYNAMIC"
)

// transitions 状态流转表，外部状态变更 API 与调度器内部守卫共用的唯一事实来源
var transitions = map[RunState]map[RunState]string{
	StateInitialized: {StateCreated: "CREATE"},
	StateCreated:     {StatePublished: "PUBLISH"},
	StatePublished:   {StateOngoing: "START"},
	StateOngoing:     {StateStopped: "STOP"},
	StateStopped:     {StateFinished: "FINISH", StateOngoing: "START"},
}

// CanTransition 查表判断 from→to 是否合法
func (s RunState) CanTransition(to RunState) bool {
	_, ok := transitions[s][to]
	return ok
}

// RunSettings 每个 Run 的不可变配置快照，热更时整体替换
type RunSettings struct {
	TickStep        time.Duration   `json:"tick_step"`
	PublishInterval time.Duration   `json:"publish_interval"`
	FluctuationRate float64         `json:"fluctuation_rate"`
	MarketHoursOnly bool            `json:"market_hours_only"`
	NoiseModel      NoiseModel      `json:"noise_model"`
	TradingMode     TradingMode     `json:"trading_mode"`
	SpreadFactor    decimal.Decimal `json:"spread_factor"`
	RunDuration     time.Duration   `json:"run_duration"`
}

// Validate 配置错误在 Run 建立时即失败
func (s *RunSettings) Validate() error {
	if s.TickStep <= 0 {
		return fmt.Errorf("tick_step must be positive, got %v", s.TickStep)
	}
	if s.FluctuationRate < 0 {
		return fmt.Errorf("fluctuation_rate must be non-negative, got %v", s.FluctuationRate)
	}
	if s.TradingMode != ModeStatic && s.TradingMode != ModeDynamic {
		return fmt.Errorf("unknown trading mode %q", s.TradingMode)
	}
	switch s.NoiseModel {
	case NoiseBrownian, NoiseRandomCandle, NoisePerlin, NoiseRandomWalk, NoiseMonteCarlo:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNoiseModel, s.NoiseModel)
	}
}

// Run 一次场景模拟的聚合根。状态只经由 TransitionTo 变更，
// 配置只经由 ApplySettings 整体替换。
// 同一实例被调度器协程与请求协程共享，State/StartTime/EndTime/fsm
// 由 mu 保护；并发侧读取走 CurrentState/Lifecycle。
type Run struct {
	ID         uint       `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	RunID      string     `json:"run_id"`
	ScenarioID string     `json:"scenario_id"`
	State      RunState   `json:"state"`
	Symbols    []string   `json:"symbols"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`

	settings atomic.Pointer[RunSettings]
	mu       sync.Mutex
	fsm      *fsm.Machine[string, string]
}

// NewRun 创建 Run，初始状态 INITIALIZED
func NewRun(scenarioID string, settings *RunSettings, symbols []string) (*Run, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	r := &Run{
		RunID:      fmt.Sprintf("RUN%d", idgen.GenID()),
		ScenarioID: scenarioID,
		State:      StateInitialized,
		Symbols:    symbols,
	}
	r.settings.Store(settings)
	r.initFSM()
	return r, nil
}

func (r *Run) initFSM() {
	m := fsm.NewMachine[string, string](string(r.State))
	for from, targets := range transitions {
		for to, event := range targets {
			m.AddTransition(string(from), event, string(to))
		}
	}
	r.fsm = m
}

// InitFSM 仓储回灌后确保状态机就位
func (r *Run) InitFSM() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fsm == nil {
		r.initFSM()
	}
}

// CurrentState 并发安全地读取当前状态
func (r *Run) CurrentState() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// Lifecycle 并发安全地读取起止时间
func (r *Run) Lifecycle() (start, end *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.StartTime, r.EndTime
}

// TransitionTo 按流转表推进状态。非法流转返回 ErrInvalidTransition 且状态不变；
// 这是预期中的控制流结果，不按故障记日志。
func (r *Run) TransitionTo(ctx context.Context, target RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fsm == nil {
		r.initFSM()
	}
	event, ok := transitions[r.State][target]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, target)
	}
	if err := r.fsm.Trigger(ctx, event); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, target)
	}
	r.State = target

	now := time.Now()
	switch target {
	case StateOngoing:
		if r.StartTime == nil {
			r.StartTime = &now
		}
	case StateFinished:
		r.EndTime = &now
	}
	return nil
}

// Settings 读取当前配置快照
func (r *Run) Settings() *RunSettings {
	return r.settings.Load()
}

// ApplySettings 原子替换配置快照。进行中的 tick 睡眠不被打断，
// 下一次迭代读到新快照。
func (r *Run) ApplySettings(s *RunSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.settings.Store(s)
	return nil
}
