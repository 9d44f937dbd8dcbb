package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() *RunSettings {
	return &RunSettings{
		TickStep:        100 * time.Millisecond,
		PublishInterval: time.Second,
		FluctuationRate: 0.5,
		NoiseModel:      NoiseBrownian,
		TradingMode:     ModeStatic,
		SpreadFactor:    decimal.NewFromFloat(0.1),
	}
}

func TestNewRunValidatesSettings(t *testing.T) {
	s := testSettings()
	s.NoiseModel = "WHAT"
	r, err := NewRun("SC1", s, []string{"ACME"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrUnknownNoiseModel)

	s = testSettings()
	s.TickStep = 0
	_, err = NewRun("SC1", s, []string{"ACME"})
	assert.Error(t, err)

	s = testSettings()
	s.TradingMode = "MANUAL"
	_, err = NewRun("SC1", s, []string{"ACME"})
	assert.Error(t, err)
}

var allStates = []RunState{
	StateInitialized, StateCreated, StatePublished,
	StateOngoing, StateStopped, StateFinished,
}

var allowed = map[RunState][]RunState{
	StateInitialized: {StateCreated},
	StateCreated:     {StatePublished},
	StatePublished:   {StateOngoing},
	StateOngoing:     {StateStopped},
	StateStopped:     {StateFinished, StateOngoing},
	StateFinished:    {},
}

func runInState(t *testing.T, state RunState) *Run {
	t.Helper()
	r, err := NewRun("SC1", testSettings(), []string{"ACME"})
	require.NoError(t, err)
	r.State = state
	r.fsm = nil
	r.InitFSM()
	return r
}

func TestTransitionTableExhaustive(t *testing.T) {
	ctx := context.Background()
	for _, from := range allStates {
		for _, to := range allStates {
			ok := false
			for _, a := range allowed[from] {
				if a == to {
					ok = true
				}
			}

			r := runInState(t, from)
			err := r.TransitionTo(ctx, to)
			if ok {
				assert.NoError(t, err, "%s -> %s should succeed", from, to)
				assert.Equal(t, to, r.State)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s should fail", from, to)
				assert.Equal(t, from, r.State, "state must be unchanged after rejected transition")
			}
		}
	}
}

func TestCanTransitionMatchesTable(t *testing.T) {
	assert.True(t, StateStopped.CanTransition(StateOngoing))
	assert.True(t, StateStopped.CanTransition(StateFinished))
	assert.False(t, StateOngoing.CanTransition(StateFinished))
	assert.False(t, StateFinished.CanTransition(StateOngoing))
}

func TestTransitionTimestamps(t *testing.T) {
	ctx := context.Background()
	r := runInState(t, StatePublished)

	require.NoError(t, r.TransitionTo(ctx, StateOngoing))
	require.NotNil(t, r.StartTime)
	started := *r.StartTime

	require.NoError(t, r.TransitionTo(ctx, StateStopped))
	require.NoError(t, r.TransitionTo(ctx, StateOngoing))
	// 重启不刷新首次开始时间
	assert.Equal(t, started, *r.StartTime)

	require.NoError(t, r.TransitionTo(ctx, StateStopped))
	require.NoError(t, r.TransitionTo(ctx, StateFinished))
	assert.NotNil(t, r.EndTime)
}

func TestApplySettingsSwapsSnapshot(t *testing.T) {
	r, err := NewRun("SC1", testSettings(), []string{"ACME"})
	require.NoError(t, err)

	old := r.Settings()
	next := testSettings()
	next.TickStep = 5 * time.Second
	require.NoError(t, r.ApplySettings(next))

	assert.Equal(t, 5*time.Second, r.Settings().TickStep)
	assert.Equal(t, 100*time.Millisecond, old.TickStep, "old snapshot is immutable")

	bad := testSettings()
	bad.NoiseModel = "NOPE"
	assert.Error(t, r.ApplySettings(bad))
	assert.Equal(t, 5*time.Second, r.Settings().TickStep, "failed apply must not change snapshot")
}
