package application

import (
	"context"
	"sync"
	"time"

	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/wyfcoding/pkg/logging"
)

const (
	defaultMonitorInterval = 5 * time.Second
	defaultJoinTimeout     = 10 * time.Second
)

// RunRegistry 调度器注册中心：每个 Run 至多一个调度器、一条监控协程。
// 监控协程按固定间隔轮询外部状态，发现 ONGOING 且循环未跑则拉起 tick 循环，
// 发现 FINISHED 则自行退出。
type RunRegistry struct {
	deps            Dependencies
	monitorInterval time.Duration
	joinTimeout     time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry

	ctx    context.Context
	cancel context.CancelFunc
}

type registryEntry struct {
	scheduler *RunScheduler
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewRunRegistry(deps Dependencies, monitorInterval, joinTimeout time.Duration) *RunRegistry {
	if monitorInterval <= 0 {
		monitorInterval = defaultMonitorInterval
	}
	if joinTimeout <= 0 {
		joinTimeout = defaultJoinTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunRegistry{
		deps:            deps,
		monitorInterval: monitorInterval,
		joinTimeout:     joinTimeout,
		entries:         make(map[string]*registryEntry),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// GetOrCreate 取得该 Run 的调度器；不存在则建立并启动监控协程。
// 并发调用同一 runID 只会建立一个实例。
func (r *RunRegistry) GetOrCreate(run *domain.Run) (*RunScheduler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[run.RunID]; ok {
		return e.scheduler, nil
	}
	sched, err := NewRunScheduler(run, r.deps)
	if err != nil {
		return nil, err
	}

	mctx, cancel := context.WithCancel(r.ctx)
	e := &registryEntry{scheduler: sched, cancel: cancel, done: make(chan struct{})}
	r.entries[run.RunID] = e
	go r.monitor(mctx, e)

	logging.Info(mctx, "registry: run registered", "run_id", run.RunID)
	return sched, nil
}

// Lookup 只查不建
func (r *RunRegistry) Lookup(runID string) (*RunScheduler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[runID]
	if !ok {
		return nil, false
	}
	return e.scheduler, true
}

func (r *RunRegistry) monitor(ctx context.Context, e *registryEntry) {
	defer close(e.done)
	runID := e.scheduler.Run().RunID

	var loops sync.WaitGroup
	defer loops.Wait()

	ticker := time.NewTicker(r.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := r.deps.States.ReadState(ctx, runID)
		if err != nil {
			logging.Warn(ctx, "registry: read state failed", "run_id", runID, "error", err)
			continue
		}

		switch state {
		case domain.StateOngoing:
			if !e.scheduler.Running() {
				loops.Add(1)
				go func() {
					defer loops.Done()
					e.scheduler.RunLoop(ctx)
				}()
			}
		case domain.StateFinished:
			logging.Info(ctx, "registry: run finished, monitor exits", "run_id", runID)
			return
		}
	}
}

// Deregister 摘除该 Run：取消监控并有界等待其收尾，超时记一条泄漏告警
func (r *RunRegistry) Deregister(runID string) {
	r.mu.Lock()
	e, ok := r.entries[runID]
	delete(r.entries, runID)
	r.mu.Unlock()
	if !ok {
		return
	}

	e.cancel()
	select {
	case <-e.done:
	case <-time.After(r.joinTimeout):
		logging.Warn(context.Background(), "registry: monitor join timed out, goroutine may leak",
			"run_id", runID, "timeout", r.joinTimeout)
	}
}

// Shutdown 摘除全部 Run，用于进程退出
func (r *RunRegistry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Deregister(id)
	}
	r.cancel()
}
