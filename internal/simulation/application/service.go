package application

import (
	"context"
	"fmt"
	"time"

	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// SimulationService 命令侧门面：建 Run、状态流转、配置热更、订单受理。
// 查询侧见 QueryService。
type SimulationService struct {
	deps     Dependencies
	registry *RunRegistry
}

func NewSimulationService(deps Dependencies, registry *RunRegistry) *SimulationService {
	return &SimulationService{deps: deps, registry: registry}
}

// CreateRun 创建 Run 并立即推进到 CREATED。
// 每个标的同时落一根种子蜡烛，DYNAMIC 模式下经纪层开盘即有报价依据。
func (s *SimulationService) CreateRun(ctx context.Context, cmd *CreateRunCommand) (*RunDTO, error) {
	settings := cmd.Settings.toSettings()
	symbols := make([]string, 0, len(cmd.Stocks))
	for _, st := range cmd.Stocks {
		symbols = append(symbols, st.Symbol)
	}

	run, err := domain.NewRun(cmd.ScenarioID, settings, symbols)
	if err != nil {
		return nil, err
	}
	if err := run.TransitionTo(ctx, domain.StateCreated); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, st := range cmd.Stocks {
		price := decimal.NewFromFloat(st.InitialPrice)
		stock := &domain.Stock{
			RunID:     run.RunID,
			Symbol:    st.Symbol,
			Name:      st.Name,
			CompanyID: st.CompanyID,
			LastClose: price,
		}
		if err := s.deps.Stocks.Save(ctx, stock); err != nil {
			return nil, fmt.Errorf("save stock %s: %w", st.Symbol, err)
		}
		seed := domain.NewPriceTick(run.RunID, st.Symbol,
			domain.Candle{Open: st.InitialPrice, High: st.InitialPrice, Low: st.InitialPrice, Close: st.InitialPrice}, now)
		if err := s.deps.Ticks.Append(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed price tick %s: %w", st.Symbol, err)
		}
	}

	if err := s.deps.Runs.Save(ctx, run); err != nil {
		return nil, err
	}
	if err := s.deps.States.WriteState(ctx, run.RunID, run.CurrentState()); err != nil {
		return nil, err
	}

	if _, err := s.registry.GetOrCreate(run); err != nil {
		return nil, err
	}

	event := domain.RunCreatedEvent{
		RunID:      run.RunID,
		ScenarioID: run.ScenarioID,
		NoiseModel: string(settings.NoiseModel),
		Mode:       string(settings.TradingMode),
		Symbols:    symbols,
		Timestamp:  now,
	}
	if err := s.deps.Publisher.Publish(ctx, domain.RunCreatedEventType, run.RunID, event); err != nil {
		logging.Warn(ctx, "service: publish run created failed", "run_id", run.RunID, "error", err)
	}

	logging.Info(ctx, "service: run created", "run_id", run.RunID,
		"scenario_id", run.ScenarioID, "stocks", len(cmd.Stocks))
	return toRunDTO(run), nil
}

// ChangeState 外部驱动的状态流转。非法流转原样返回 ErrInvalidTransition
func (s *SimulationService) ChangeState(ctx context.Context, runID string, target domain.RunState) (*RunDTO, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	from := run.CurrentState()
	if err := run.TransitionTo(ctx, target); err != nil {
		return nil, err
	}
	// 调度器可能并发收束状态，后续读取走并发安全快照
	to := run.CurrentState()

	if err := s.deps.Runs.Save(ctx, run); err != nil {
		return nil, err
	}
	if err := s.deps.States.WriteState(ctx, runID, to); err != nil {
		return nil, err
	}

	event := domain.RunStateChangedEvent{
		RunID:     runID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now(),
	}
	if err := s.deps.Publisher.Publish(ctx, domain.RunStateChangedEventType, runID, event); err != nil {
		logging.Warn(ctx, "service: publish state change failed", "run_id", runID, "error", err)
	}

	if to == domain.StateFinished {
		// 监控协程看到 FINISHED 会自行退出，这里只做摘除兜底
		go s.registry.Deregister(runID)
	}

	logging.Info(ctx, "service: run state changed", "run_id", runID,
		"from", string(from), "to", string(to))
	return toRunDTO(run), nil
}

// ApplyNewSettings 配置热更：整体替换快照，进行中的 tick 循环下一轮生效
func (s *SimulationService) ApplyNewSettings(ctx context.Context, runID string, cmd *SettingsCommand) (*RunDTO, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	if err := run.ApplySettings(cmd.toSettings()); err != nil {
		return nil, err
	}
	if err := s.deps.Runs.Save(ctx, run); err != nil {
		return nil, err
	}

	event := domain.SettingsAppliedEvent{RunID: runID, Timestamp: time.Now()}
	if err := s.deps.Publisher.Publish(ctx, domain.SettingsAppliedEventType, runID, event); err != nil {
		logging.Warn(ctx, "service: publish settings applied failed", "run_id", runID, "error", err)
	}

	logging.Info(ctx, "service: settings applied", "run_id", runID)
	return toRunDTO(run), nil
}

// RegisterOrder 受理订单并转交调度器的经纪层
func (s *SimulationService) RegisterOrder(ctx context.Context, runID string, cmd *OrderCommand) error {
	sched, ok := s.registry.Lookup(runID)
	if !ok {
		if _, err := s.loadRun(ctx, runID); err != nil {
			return err
		}
		if sched, ok = s.registry.Lookup(runID); !ok {
			return domain.ErrRunNotFound
		}
	}

	order := &domain.Order{
		OrderID:   fmt.Sprintf("O%d", idgen.GenID()),
		TraderID:  cmd.TraderID,
		Symbol:    cmd.Symbol,
		Side:      domain.OrderSide(cmd.Side),
		Price:     decimal.NewFromFloat(cmd.Price),
		Quantity:  decimal.NewFromFloat(cmd.Quantity),
		Timestamp: time.Now(),
	}
	return sched.RegisterOrder(ctx, order)
}

// ResumeActiveRuns 进程重启后把未终结的 Run 重新挂回注册中心
func (s *SimulationService) ResumeActiveRuns(ctx context.Context) error {
	active := []domain.RunState{
		domain.StateCreated, domain.StatePublished,
		domain.StateOngoing, domain.StateStopped,
	}
	resumed := 0
	for _, state := range active {
		runs, err := s.deps.Runs.ListByState(ctx, state)
		if err != nil {
			return fmt.Errorf("list runs in state %s: %w", state, err)
		}
		for _, run := range runs {
			run.InitFSM()
			if _, err := s.registry.GetOrCreate(run); err != nil {
				logging.Error(ctx, "service: resume run failed", "run_id", run.RunID, "error", err)
				continue
			}
			resumed++
		}
	}
	logging.Info(ctx, "service: active runs resumed", "count", resumed)
	return nil
}

// loadRun 优先从注册中心取在管实例，未在管则回灌仓储并重新挂载（终结态除外）
func (s *SimulationService) loadRun(ctx context.Context, runID string) (*domain.Run, error) {
	if sched, ok := s.registry.Lookup(runID); ok {
		return sched.Run(), nil
	}
	run, err := s.deps.Runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	run.InitFSM()
	if run.CurrentState() != domain.StateFinished {
		if _, err := s.registry.GetOrCreate(run); err != nil {
			return nil, err
		}
	}
	return run, nil
}
