package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

func newTestService(t *testing.T) (*SimulationService, *QueryService, *RunRegistry, *memStore) {
	t.Helper()
	store := newMemStore()
	deps := store.deps()
	reg := NewRunRegistry(deps, 5*time.Millisecond, 500*time.Millisecond)
	t.Cleanup(reg.Shutdown)
	svc := NewSimulationService(deps, reg)
	query := NewQueryService(deps.Runs, deps.Ticks, deps.Trades)
	return svc, query, reg, store
}

func createCmd(mode string) *CreateRunCommand {
	return &CreateRunCommand{
		ScenarioID: "SC1",
		Stocks: []StockInit{
			{Symbol: "ACME", Name: "Acme Corp", CompanyID: "C1", InitialPrice: 100},
			{Symbol: "ZEN", Name: "Zen Ltd", CompanyID: "C2", InitialPrice: 50},
		},
		Settings: SettingsCommand{
			TickStepMs:      1,
			FluctuationRate: 0.5,
			NoiseModel:      string(domain.NoiseBrownian),
			TradingMode:     mode,
			SpreadFactor:    0.1,
		},
	}
}

func TestCreateRun(t *testing.T) {
	svc, _, reg, store := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateRun(ctx, createCmd("STATIC"))
	require.NoError(t, err)
	require.NotEmpty(t, dto.RunID)
	assert.Equal(t, string(domain.StateCreated), dto.State)
	assert.ElementsMatch(t, []string{"ACME", "ZEN"}, dto.Symbols)

	assert.Equal(t, domain.StateCreated, store.state(dto.RunID))
	// 每个标的落了一根种子蜡烛
	assert.Equal(t, 1, store.tickCount(dto.RunID, "ACME"))
	assert.Equal(t, 1, store.tickCount(dto.RunID, "ZEN"))

	_, ok := reg.Lookup(dto.RunID)
	assert.True(t, ok, "created run is registered immediately")
	assert.NotEmpty(t, store.publishedOn(domain.RunCreatedEventType))
}

func TestCreateRunRejectsUnknownModel(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	cmd := createCmd("STATIC")
	cmd.Settings.NoiseModel = "SPLINE"
	_, err := svc.CreateRun(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrUnknownNoiseModel)
}

func TestChangeStateFlow(t *testing.T) {
	svc, _, _, store := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateRun(ctx, createCmd("STATIC"))
	require.NoError(t, err)

	// CREATED 不能直接跳 ONGOING
	_, err = svc.ChangeState(ctx, dto.RunID, domain.StateOngoing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StateCreated, store.state(dto.RunID))

	dto, err = svc.ChangeState(ctx, dto.RunID, domain.StatePublished)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatePublished), dto.State)

	dto, err = svc.ChangeState(ctx, dto.RunID, domain.StateOngoing)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOngoing, store.state(dto.RunID))
	assert.NotEmpty(t, store.publishedOn(domain.RunStateChangedEventType))
}

// 调度器收束（run_duration 耗尽）与外部流转指令竞争同一聚合实例，
// go test -race 下必须干净
func TestConcurrentStateCommandsDuringForcedFinish(t *testing.T) {
	svc, _, reg, store := newTestService(t)
	ctx := context.Background()

	cmd := createCmd("STATIC")
	cmd.Settings.RunDurationMs = 2
	dto, err := svc.CreateRun(ctx, cmd)
	require.NoError(t, err)
	_, err = svc.ChangeState(ctx, dto.RunID, domain.StatePublished)
	require.NoError(t, err)
	_, err = svc.ChangeState(ctx, dto.RunID, domain.StateOngoing)
	require.NoError(t, err)

	sched, ok := reg.Lookup(dto.RunID)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		sched.RunLoop(ctx)
		close(done)
	}()

	for {
		select {
		case <-done:
			// 两边的流转都走 TransitionTo，终态只能是流转表可达的状态
			assert.Contains(t, []domain.RunState{
				domain.StateOngoing, domain.StateStopped, domain.StateFinished,
			}, store.state(dto.RunID))
			return
		default:
			_, _ = svc.ChangeState(ctx, dto.RunID, domain.StateStopped)
			_, _ = svc.ChangeState(ctx, dto.RunID, domain.StateOngoing)
		}
	}
}

func TestChangeStateUnknownRun(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ChangeState(context.Background(), "RUN-missing", domain.StatePublished)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestApplyNewSettingsHotSwap(t *testing.T) {
	svc, _, reg, _ := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateRun(ctx, createCmd("STATIC"))
	require.NoError(t, err)

	next := createCmd("STATIC").Settings
	next.TickStepMs = 5000
	updated, err := svc.ApplyNewSettings(ctx, dto.RunID, &next)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.Settings.TickStepMs)

	// 在管调度器读到的是同一份新快照
	sched, ok := reg.Lookup(dto.RunID)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, sched.Run().Settings().TickStep)

	bad := createCmd("STATIC").Settings
	bad.NoiseModel = "SPLINE"
	_, err = svc.ApplyNewSettings(ctx, dto.RunID, &bad)
	assert.ErrorIs(t, err, domain.ErrUnknownNoiseModel)
}

func TestRegisterOrder(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	order := &OrderCommand{TraderID: "alice", Symbol: "ACME", Side: "BUY", Price: 100, Quantity: 10}

	err := svc.RegisterOrder(ctx, "RUN-missing", order)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	static, err := svc.CreateRun(ctx, createCmd("STATIC"))
	require.NoError(t, err)
	err = svc.RegisterOrder(ctx, static.RunID, order)
	assert.ErrorIs(t, err, domain.ErrStaticRun)

	dynamic, err := svc.CreateRun(ctx, createCmd("DYNAMIC"))
	require.NoError(t, err)
	assert.NoError(t, svc.RegisterOrder(ctx, dynamic.RunID, order))
}

func TestResumeActiveRuns(t *testing.T) {
	svc, _, _, store := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateRun(ctx, createCmd("STATIC"))
	require.NoError(t, err)

	// 新的注册中心模拟进程重启，仓储数据仍在
	reg2 := NewRunRegistry(store.deps(), 5*time.Millisecond, 500*time.Millisecond)
	t.Cleanup(reg2.Shutdown)
	svc2 := NewSimulationService(store.deps(), reg2)

	_, ok := reg2.Lookup(dto.RunID)
	require.False(t, ok)

	require.NoError(t, svc2.ResumeActiveRuns(ctx))
	_, ok = reg2.Lookup(dto.RunID)
	assert.True(t, ok)
}

func TestQueryService(t *testing.T) {
	svc, query, _, _ := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateRun(ctx, createCmd("STATIC"))
	require.NoError(t, err)

	got, err := query.GetRun(ctx, dto.RunID)
	require.NoError(t, err)
	assert.Equal(t, dto.RunID, got.RunID)

	_, err = query.GetRun(ctx, "RUN-missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	runs, err := query.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	ticks, err := query.RecentTicks(ctx, dto.RunID, "ACME", 10)
	require.NoError(t, err)
	assert.Len(t, ticks, 1, "seed candle is queryable")

	trades, err := query.RecentTrades(ctx, dto.RunID, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
