package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantclass/stocksim/internal/simulation/domain"
)

// memStore 测试用的全内存后端，经由小包装类型满足各仓储口
type memStore struct {
	mu        sync.Mutex
	runs      map[string]*domain.Run
	stocks    map[string][]*domain.Stock
	ticks     map[string][]*domain.PriceTick
	trades    map[string][]*domain.Trade
	ledger    []*domain.Order
	states    map[string]domain.RunState
	published []publishedMsg
}

type publishedMsg struct {
	topic   string
	key     string
	payload any
}

func newMemStore() *memStore {
	return &memStore{
		runs:   make(map[string]*domain.Run),
		stocks: make(map[string][]*domain.Stock),
		ticks:  make(map[string][]*domain.PriceTick),
		trades: make(map[string][]*domain.Trade),
		states: make(map[string]domain.RunState),
	}
}

func (m *memStore) deps() Dependencies {
	return Dependencies{
		Runs:      memRunRepo{m},
		Stocks:    memStockRepo{m},
		Ticks:     memTickRepo{m},
		Trades:    memTradeRepo{m},
		States:    m,
		Publisher: m,
	}
}

func tickKey(runID, symbol string) string { return runID + "/" + symbol }

type memRunRepo struct{ s *memStore }

func (r memRunRepo) Save(_ context.Context, run *domain.Run) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.runs[run.RunID] = run
	return nil
}

func (r memRunRepo) Get(_ context.Context, runID string) (*domain.Run, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.runs[runID], nil
}

func (r memRunRepo) List(_ context.Context, limit int) ([]*domain.Run, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.Run, 0, len(r.s.runs))
	for _, run := range r.s.runs {
		if len(out) == limit {
			break
		}
		out = append(out, run)
	}
	return out, nil
}

func (r memRunRepo) ListByState(_ context.Context, state domain.RunState) ([]*domain.Run, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Run
	for _, run := range r.s.runs {
		if run.CurrentState() == state {
			out = append(out, run)
		}
	}
	return out, nil
}

type memStockRepo struct{ s *memStore }

func (r memStockRepo) Save(_ context.Context, st *domain.Stock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stocks[st.RunID] = append(r.s.stocks[st.RunID], st)
	return nil
}

func (r memStockRepo) LoadStocks(_ context.Context, runID string) ([]*domain.Stock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.stocks[runID], nil
}

type memTickRepo struct{ s *memStore }

func (r memTickRepo) Append(_ context.Context, t *domain.PriceTick) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := tickKey(t.RunID, t.Symbol)
	r.s.ticks[k] = append(r.s.ticks[k], t)
	return nil
}

func (r memTickRepo) LastTick(_ context.Context, runID, symbol string) (*domain.PriceTick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts := r.s.ticks[tickKey(runID, symbol)]
	if len(ts) == 0 {
		return nil, nil
	}
	return ts[len(ts)-1], nil
}

func (r memTickRepo) Recent(_ context.Context, runID, symbol string, limit int) ([]*domain.PriceTick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts := r.s.ticks[tickKey(runID, symbol)]
	if len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	return ts, nil
}

type memTradeRepo struct{ s *memStore }

func (r memTradeRepo) Save(_ context.Context, t *domain.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.trades[t.RunID] = append(r.s.trades[t.RunID], t)
	return nil
}

func (r memTradeRepo) SaveLedger(_ context.Context, orders []*domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ledger = append(r.s.ledger, orders...)
	return nil
}

func (r memTradeRepo) Recent(_ context.Context, runID string, limit int) ([]*domain.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ts := r.s.trades[runID]
	if len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	return ts, nil
}

// RunStateStore

func (m *memStore) ReadState(_ context.Context, runID string) (domain.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[runID]
	if !ok {
		return "", fmt.Errorf("no state for run %s", runID)
	}
	return state, nil
}

func (m *memStore) WriteState(_ context.Context, runID string, state domain.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[runID] = state
	return nil
}

// MarketDataPublisher

func (m *memStore) Publish(_ context.Context, topic, key string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{topic: topic, key: key, payload: payload})
	return nil
}

func (m *memStore) tickCount(runID, symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ticks[tickKey(runID, symbol)])
}

func (m *memStore) tradeCount(runID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades[runID])
}

func (m *memStore) state(runID string) domain.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[runID]
}

func (m *memStore) publishedOn(topic string) []publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMsg
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}
