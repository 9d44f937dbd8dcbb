// Package application 模拟引擎的应用层：每个 Run 一个调度器，
// 由注册中心统一监督。
package application

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/wyfcoding/pkg/logging"
)

// Dependencies 引擎触达外部世界的全部协作口
type Dependencies struct {
	Runs      domain.RunRepository
	Stocks    domain.StockRepository
	Ticks     domain.PriceTickRepository
	Trades    domain.TradeRepository
	States    domain.RunStateStore
	Publisher domain.MarketDataPublisher
}

// RunScheduler 驱动单个 Run 的 tick 循环。同一 Run 同时至多一个循环在跑，
// 由 running 标志与注册中心共同保证。
type RunScheduler struct {
	run   *domain.Run
	deps  Dependencies
	model domain.NoiseModel
	rng   *rand.Rand

	strategy domain.NoiseStrategy
	broker   *domain.Broker

	clock       func() time.Time
	running     atomic.Bool
	lastPublish time.Time
}

// NewRunScheduler 建立调度器。噪声模型在此即被解析，
// 未注册的模型名在 Run 建立阶段就报配置错误。
func NewRunScheduler(run *domain.Run, deps Dependencies) (*RunScheduler, error) {
	settings := run.Settings()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	strategy, err := domain.NewNoiseStrategy(settings.NoiseModel, rng)
	if err != nil {
		return nil, err
	}
	return &RunScheduler{
		run:      run,
		deps:     deps,
		model:    settings.NoiseModel,
		rng:      rng,
		strategy: strategy,
		broker:   domain.NewBroker(run.RunID, settings.SpreadFactor, deps.Ticks),
		clock:    time.Now,
	}, nil
}

func (s *RunScheduler) Run() *domain.Run { return s.run }

// Running 报告 tick 循环是否在运行
func (s *RunScheduler) Running() bool { return s.running.Load() }

// RegisterOrder DYNAMIC 模式下接收外部订单进入经纪层
func (s *RunScheduler) RegisterOrder(ctx context.Context, o *domain.Order) error {
	if s.run.Settings().TradingMode != domain.ModeDynamic {
		return domain.ErrStaticRun
	}
	o.RunID = s.run.RunID
	return s.broker.Register(ctx, o)
}

// RunLoop 状态为 ONGOING 期间的 tick 循环。每轮迭代重读外部状态与配置快照，
// 协作式睡眠 tick_step；超过 run_duration 强制收束到 FINISHED。
func (s *RunScheduler) RunLoop(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	runID := s.run.RunID
	stocks, err := s.deps.Stocks.LoadStocks(ctx, runID)
	if err != nil {
		logging.Error(ctx, "scheduler: load stocks failed", "run_id", runID, "error", err)
		return
	}

	lastClose := make(map[string]float64, len(stocks))
	tickIndex := make(map[string]int, len(stocks))
	for _, st := range stocks {
		lastClose[st.Symbol] = st.LastClose.InexactFloat64()
		if t, err := s.deps.Ticks.LastTick(ctx, runID, st.Symbol); err == nil && t != nil {
			lastClose[st.Symbol] = t.Close.InexactFloat64()
		}
	}

	// run_duration 约束的是 Run 的总运行时长：从首次进入 ONGOING 起算，
	// STOPPED→ONGOING 重新激活不重置预算
	start := s.clock()
	if firstStart, _ := s.run.Lifecycle(); firstStart != nil {
		start = *firstStart
	}
	logging.Info(ctx, "scheduler: tick loop started", "run_id", runID, "stocks", len(stocks))

	for {
		state, err := s.deps.States.ReadState(ctx, runID)
		if err != nil {
			logging.Warn(ctx, "scheduler: read state failed", "run_id", runID, "error", err)
		} else if state != domain.StateOngoing {
			logging.Info(ctx, "scheduler: run left ONGOING, tick loop exits",
				"run_id", runID, "state", string(state))
			return
		}

		settings := s.run.Settings()
		if settings.RunDuration > 0 && s.clock().Sub(start) >= settings.RunDuration {
			s.forceFinish(ctx)
			return
		}

		if err := s.safeTick(ctx, stocks, lastClose, tickIndex, settings); err != nil {
			s.forceStop(ctx, err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(settings.TickStep):
		}
	}
}

// safeTick 执行单轮 tick，panic 在循环边界被捕获并转为错误
func (s *RunScheduler) safeTick(ctx context.Context, stocks []*domain.Stock,
	lastClose map[string]float64, tickIndex map[string]int, settings *domain.RunSettings) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()

	// 交易时段门禁：时段外跳过价格推演，但保持睡眠节奏
	if settings.MarketHoursOnly && !withinMarketHours(s.clock()) {
		return nil
	}

	s.refreshStrategy(ctx, settings)

	if settings.TradingMode == domain.ModeDynamic {
		s.dynamicTick(ctx)
	} else {
		s.staticTick(ctx, stocks, lastClose, tickIndex, settings)
	}
	return nil
}

// staticTick 噪声模型直接推演每个标的的下一根蜡烛。
// 行情每 tick 必落库；对外推送按 publish_interval 节流。
func (s *RunScheduler) staticTick(ctx context.Context, stocks []*domain.Stock,
	lastClose map[string]float64, tickIndex map[string]int, settings *domain.RunSettings) {
	now := s.clock()
	publish := settings.PublishInterval <= 0 || now.Sub(s.lastPublish) >= settings.PublishInterval

	for _, st := range stocks {
		c := s.strategy.Generate(lastClose[st.Symbol], settings.FluctuationRate, tickIndex[st.Symbol])
		tickIndex[st.Symbol]++
		lastClose[st.Symbol] = c.Close

		tick := domain.NewPriceTick(s.run.RunID, st.Symbol, c, now)
		if err := s.deps.Ticks.Append(ctx, tick); err != nil {
			// 瞬时 IO 故障：跳过该标的本轮，不中断整个 Run
			logging.Warn(ctx, "scheduler: append price tick failed",
				"run_id", s.run.RunID, "symbol", st.Symbol, "error", err)
			continue
		}
		if publish {
			s.broadcastTick(ctx, tick)
		}
	}
	if publish {
		s.lastPublish = now
	}
}

// dynamicTick 经纪撮合出价：排空所有队列，落库并广播成交
func (s *RunScheduler) dynamicTick(ctx context.Context) {
	res := s.broker.ProcessAll(ctx)
	if len(res.Trades) == 0 {
		return
	}
	if err := s.deps.Trades.SaveLedger(ctx, res.Ledger); err != nil {
		logging.Warn(ctx, "scheduler: save trade ledger failed", "run_id", s.run.RunID, "error", err)
	}
	for _, tr := range res.Trades {
		if err := s.deps.Trades.Save(ctx, tr); err != nil {
			logging.Warn(ctx, "scheduler: save trade failed",
				"run_id", s.run.RunID, "trade_id", tr.TradeID, "error", err)
			continue
		}
		s.broadcastTrade(ctx, tr)
	}
}

// refreshStrategy 配置热更换了噪声模型时重建策略；失败保留旧策略
func (s *RunScheduler) refreshStrategy(ctx context.Context, settings *domain.RunSettings) {
	if settings.NoiseModel == s.model {
		return
	}
	strategy, err := domain.NewNoiseStrategy(settings.NoiseModel, s.rng)
	if err != nil {
		logging.Warn(ctx, "scheduler: rebuild noise strategy failed",
			"run_id", s.run.RunID, "model", string(settings.NoiseModel), "error", err)
		return
	}
	s.strategy = strategy
	s.model = settings.NoiseModel
}

func (s *RunScheduler) broadcastTick(ctx context.Context, t *domain.PriceTick) {
	msg := domain.PriceTickBroadcast{
		RunID:     t.RunID,
		Symbol:    t.Symbol,
		Open:      t.Open.String(),
		High:      t.High.String(),
		Low:       t.Low.String(),
		Close:     t.Close.String(),
		Timestamp: t.Timestamp.UnixMilli(),
	}
	if err := s.deps.Publisher.Publish(ctx, domain.BroadcastTopic(t.RunID), t.Symbol, msg); err != nil {
		logging.Warn(ctx, "scheduler: broadcast tick failed",
			"run_id", t.RunID, "symbol", t.Symbol, "error", err)
	}
	// 全局行情火线，供 Run 之外的投影消费
	if err := s.deps.Publisher.Publish(ctx, domain.PriceTickGeneratedType, t.Symbol, msg); err != nil {
		logging.Warn(ctx, "scheduler: publish tick event failed",
			"run_id", t.RunID, "symbol", t.Symbol, "error", err)
	}
}

func (s *RunScheduler) broadcastTrade(ctx context.Context, tr *domain.Trade) {
	msg := domain.TradeBroadcast{
		RunID:     tr.RunID,
		TradeID:   tr.TradeID,
		Symbol:    tr.Symbol,
		BuyerID:   tr.BuyerID,
		SellerID:  tr.SellerID,
		Price:     tr.Price.String(),
		Quantity:  tr.Quantity.String(),
		Timestamp: tr.Timestamp.UnixMilli(),
	}
	if err := s.deps.Publisher.Publish(ctx, domain.BroadcastTopic(tr.RunID), tr.Symbol, msg); err != nil {
		logging.Warn(ctx, "scheduler: broadcast trade failed",
			"run_id", tr.RunID, "trade_id", tr.TradeID, "error", err)
	}
	if err := s.deps.Publisher.Publish(ctx, domain.TradeExecutedEventType, tr.TradeID, msg); err != nil {
		logging.Warn(ctx, "scheduler: publish trade event failed",
			"run_id", tr.RunID, "trade_id", tr.TradeID, "error", err)
	}
}

// forceFinish 运行时长耗尽：ONGOING→STOPPED→FINISHED 两步收束
func (s *RunScheduler) forceFinish(ctx context.Context) {
	from := s.run.CurrentState()
	if err := s.run.TransitionTo(ctx, domain.StateStopped); err != nil {
		logging.Warn(ctx, "scheduler: force finish transition failed", "run_id", s.run.RunID, "error", err)
		return
	}
	if err := s.run.TransitionTo(ctx, domain.StateFinished); err != nil {
		logging.Warn(ctx, "scheduler: force finish transition failed", "run_id", s.run.RunID, "error", err)
	}
	s.persistState(ctx, from)
	logging.Info(ctx, "scheduler: run duration exceeded, forced to FINISHED", "run_id", s.run.RunID)
}

// forceStop tick 内部的不可恢复错误：收束到 STOPPED，
// 运营方可经 STOPPED→ONGOING 重新激活
func (s *RunScheduler) forceStop(ctx context.Context, cause error) {
	from := s.run.CurrentState()
	logging.Error(ctx, "scheduler: unrecoverable tick error, forcing STOPPED",
		"run_id", s.run.RunID, "state", string(from), "error", cause)
	if !from.CanTransition(domain.StateStopped) {
		return
	}
	if err := s.run.TransitionTo(ctx, domain.StateStopped); err != nil {
		logging.Warn(ctx, "scheduler: force stop transition failed", "run_id", s.run.RunID, "error", err)
		return
	}
	s.persistState(ctx, from)
}

func (s *RunScheduler) persistState(ctx context.Context, from domain.RunState) {
	to := s.run.CurrentState()
	if err := s.deps.Runs.Save(ctx, s.run); err != nil {
		logging.Warn(ctx, "scheduler: persist run failed", "run_id", s.run.RunID, "error", err)
	}
	if err := s.deps.States.WriteState(ctx, s.run.RunID, to); err != nil {
		logging.Warn(ctx, "scheduler: write state failed", "run_id", s.run.RunID, "error", err)
	}
	event := domain.RunStateChangedEvent{
		RunID:     s.run.RunID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now(),
	}
	if err := s.deps.Publisher.Publish(ctx, domain.RunStateChangedEventType, s.run.RunID, event); err != nil {
		logging.Warn(ctx, "scheduler: publish state change failed", "run_id", s.run.RunID, "error", err)
	}
}

// withinMarketHours 工作日 09:00–16:00
func withinMarketHours(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return t.Hour() >= 9 && t.Hour() < 16
}
