package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/variant"
)

const (
	catLevel  alarms.CategoryID     = 0x300
	catDev    alarms.CategoryID     = 0x100
	defRamp   alarms.DefinitionID   = 0x500
	defTank   alarms.DefinitionID   = 0x502
	subLoLo   alarms.SubConditionID = 0x550
	subLo     alarms.SubConditionID = 0x551
	subHi     alarms.SubConditionID = 0x552
	subHiHi   alarms.SubConditionID = 0x553
	srcTank   alarms.SourceID       = 0x705
	condTank  alarms.ConditionID    = 0x800
	condLevel alarms.ConditionID    = 0x804
)

type listener struct {
	mu     sync.Mutex
	states []alarms.ConditionState
	events []alarms.Event
}

func (l *listener) ConditionChanged(s alarms.ConditionState) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *listener) EventRaised(e alarms.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func newModel(t *testing.T) (*alarms.Model, *listener) {
	t.Helper()
	l := &listener{}
	m := alarms.NewModel(alarms.WithListener(l))
	require.NoError(t, m.DefineCategory(catLevel, "Level", alarms.KindCondition))
	require.NoError(t, m.AddAttribute(catLevel, 0x400, "Current Value", variant.TypeI4))
	require.NoError(t, m.DefineCategory(catDev, "Device Failure", alarms.KindSimple))
	require.NoError(t, m.DefineSingleStateCondition(defTank, catLevel, "Tank", "level > 80", 100, "Overflow", true))
	require.NoError(t, m.DefineMultiStateCondition(defRamp, catLevel, "Ramp"))
	for _, sc := range []alarms.SubCondition{
		{ID: subLoLo, Severity: 400, Message: "Low Low Alarm"},
		{ID: subLo, Severity: 100, Message: "Low Alarm"},
		{ID: subHi, Severity: 100, Message: "High Alarm"},
		{ID: subHiHi, Severity: 400, Message: "High High Alarm"},
	} {
		require.NoError(t, m.AddSubCondition(defRamp, sc))
	}
	require.NoError(t, m.AddSource(alarms.RootArea, srcTank, "Tank 1", false))
	_, err := m.Instantiate(srcTank, defTank, alarms.WithConditionID(condTank))
	require.NoError(t, err)
	_, err = m.Instantiate(srcTank, defRamp, alarms.WithConditionID(condLevel))
	require.NoError(t, err)
	m.Seal()
	return m, l
}

func levelBands() []Band {
	return []Band{
		Below(subLoLo, 15),
		Between(subLo, 15, 25),
		Between(subHi, 76, 86),
		Above(subHiHi, 85),
	}
}

func TestRampWraps(t *testing.T) {
	r := NewRamp(0, 100)
	ctx := context.Background()
	for want := int32(0); want <= 100; want++ {
		v, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, v.Interface())
	}
	v, _ := r.Next(ctx)
	assert.Equal(t, int32(0), v.Interface())
}

func TestSineCompletesPeriodInSteps(t *testing.T) {
	s := NewSine(40, 100)
	ctx := context.Background()
	var vals []float64
	for i := 0; i < 41; i++ {
		v, _ := s.Next(ctx)
		vals = append(vals, v.Interface().(float64))
	}
	assert.InDelta(t, 0, vals[0], 1e-9)
	assert.InDelta(t, 100, vals[10], 1e-9)
	assert.InDelta(t, -100, vals[30], 1e-9)
	assert.InDelta(t, vals[0], vals[40], 1e-9)
}

func TestRandomStaysInRange(t *testing.T) {
	r := NewRandom(100, 42)
	for i := 0; i < 1000; i++ {
		v, _ := r.Next(context.Background())
		n := v.Interface().(int32)
		assert.GreaterOrEqual(t, n, int32(0))
		assert.Less(t, n, int32(100))
	}
}

func TestBandCycleSequence(t *testing.T) {
	m, l := newModel(t)
	bc, err := NewBandCycle("level", 3*time.Second, condLevel, []int32{10, 20, 50, 80, 90}, 0, levelBands())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, bc.Step(time.Now(), m))
	}

	want := []alarms.SubConditionID{subLo, alarms.NoSubCondition, subHi, subHiHi, subLoLo, subLo}
	wantValues := []int32{20, 50, 80, 90, 10, 20}
	require.Len(t, l.states, 6)
	for i, st := range l.states {
		assert.Equal(t, want[i], st.SubCondition, "step %d", i)
		assert.Equal(t, want[i] != alarms.NoSubCondition, st.Active, "step %d", i)
		assert.Equal(t, wantValues[i], st.Attributes[0].Interface(), "step %d", i)
	}
}

func TestBandCycleAckOverride(t *testing.T) {
	m, l := newModel(t)
	bc, err := NewBandCycle("level", time.Second, condLevel, []int32{50, 80, 90}, 0, levelBands())
	require.NoError(t, err)
	bc.OverrideAck(subHi, true)

	require.NoError(t, bc.Step(time.Now(), m))
	require.NoError(t, bc.Step(time.Now(), m))

	assert.True(t, l.states[0].AckRequired, "HI forced")
	assert.False(t, l.states[1].AckRequired, "HI_HI default")
	assert.Equal(t, int32(90), bc.Value())
}

func TestBandCycleValidation(t *testing.T) {
	_, err := NewBandCycle("x", time.Second, 1, nil, 0, nil)
	assert.Error(t, err)
	_, err = NewBandCycle("x", time.Second, 1, []int32{1}, 3, nil)
	assert.Error(t, err)
}

func TestToggleAlternates(t *testing.T) {
	m, l := newModel(t)
	tg := NewToggle("tank", 2*time.Second, condTank,
		ToggleState{Message: "Overflow", Attribute: variant.Must(int32(123))},
		ToggleState{Message: "Normal State", Attribute: variant.Must(int32(80))})

	for i := 0; i < 4; i++ {
		require.NoError(t, tg.Step(time.Now(), m))
	}

	require.Len(t, l.states, 4)
	assert.True(t, l.states[0].Active)
	assert.Equal(t, "Overflow", l.states[0].Message)
	assert.Equal(t, int32(123), l.states[0].Attributes[0].Interface())
	assert.False(t, l.states[1].Active)
	assert.Equal(t, "Normal State", l.states[1].Message)
	assert.Equal(t, int32(80), l.states[1].Attributes[0].Interface())
	assert.False(t, tg.Active())
}

func TestToggleKeepsStateOnFailure(t *testing.T) {
	m, _ := newModel(t)
	tg := NewToggle("bad", time.Second, 0x8ff, ToggleState{Attribute: variant.Must(int32(1))}, ToggleState{Attribute: variant.Must(int32(0))})
	assert.Error(t, tg.Step(time.Now(), m))
	assert.False(t, tg.Active())
}

func TestPeriodicEvent(t *testing.T) {
	m, l := newModel(t)
	pe := NewPeriodicEvent("devfail", 2*time.Minute, alarms.Event{Category: catDev, Source: srcTank, Message: "No response", Severity: 800})

	require.NoError(t, pe.Step(time.Now(), m))
	assert.Equal(t, uint64(1), pe.Raised())
	require.Len(t, l.events, 1)
	assert.Equal(t, uint32(800), l.events[0].Severity)
}

func newStore(t *testing.T, paths ...string) *items.Store {
	t.Helper()
	s := items.NewStore()
	for _, p := range paths {
		_, err := s.Add(p, items.ReadOnly, variant.Must(int32(0)))
		require.NoError(t, err)
	}
	return s
}

func read(t *testing.T, s *items.Store, path string) int32 {
	t.Helper()
	h, err := s.Lookup(path)
	require.NoError(t, err)
	smp, err := s.GetValue(h)
	require.NoError(t, err)
	return smp.Value.Interface().(int32)
}

func TestEngineGatesOnReadiness(t *testing.T) {
	store := newStore(t, "Count", "Ramp")
	m, l := newModel(t)

	var ready bool
	e := NewEngine(Config{Period: 200 * time.Millisecond, SignalInterval: time.Second}, store, m,
		WithReadiness(func() bool { return ready }))
	e.AddSignal(Signal{Name: "count", Item: "Count", Gen: ItemCount(store), Always: true})
	e.AddSignal(Signal{Name: "ramp", Item: "Ramp", Gen: NewRamp(1, 100)})
	e.AddScenario(NewToggle("tank", 400*time.Millisecond, condTank,
		ToggleState{Attribute: variant.Must(int32(1))}, ToggleState{Attribute: variant.Must(int32(0))}))

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		e.Tick(ctx)
	}
	assert.Equal(t, int32(2), read(t, store, "Count"), "always signal runs before ready")
	assert.Equal(t, int32(0), read(t, store, "Ramp"), "gated signal waits for ready")
	assert.Empty(t, l.states)

	ready = true
	var results []TickResult
	for i := 0; i < 10; i++ {
		results = append(results, e.Tick(ctx))
	}
	assert.Equal(t, int32(2), read(t, store, "Ramp"), "recomputed every 5 ticks")
	assert.Len(t, l.states, 5, "toggle every 2 ticks")
	assert.Equal(t, uint64(20), e.Ticks())
	assert.Equal(t, uint64(15), results[4].Tick)
	assert.Equal(t, 2, results[4].Signals)
}

func TestEngineSkipsFailingSignal(t *testing.T) {
	store := newStore(t, "Good", "Typed")
	m, _ := newModel(t)
	e := NewEngine(Config{Period: time.Second, SignalInterval: time.Second}, store, m)

	e.AddSignal(Signal{Name: "broken", Item: "Good", Gen: GeneratorFunc(func(context.Context) (variant.Value, error) {
		return variant.Empty, errors.New("sensor offline")
	})})
	e.AddSignal(Signal{Name: "wrong-type", Item: "Typed", Gen: NewSine(40, 1)})
	e.AddSignal(Signal{Name: "missing", Item: "Nowhere", Gen: NewRamp(0, 1)})
	e.AddSignal(Signal{Name: "ramp", Item: "Good", Gen: NewRamp(7, 100)})

	res := e.Tick(context.Background())
	assert.Equal(t, 3, res.Failures)
	assert.Equal(t, 1, res.Signals)
	assert.Equal(t, int32(7), read(t, store, "Good"))
}

func TestEngineScenarioFailureDoesNotStopTick(t *testing.T) {
	store := newStore(t)
	m, l := newModel(t)
	e := NewEngine(Config{Period: time.Second}, store, m)
	e.AddScenario(NewToggle("bad", time.Second, 0x8ff, ToggleState{}, ToggleState{}))
	e.AddScenario(NewToggle("tank", time.Second, condTank,
		ToggleState{Attribute: variant.Must(int32(1))}, ToggleState{Attribute: variant.Must(int32(0))}))

	res := e.Tick(context.Background())
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 1, res.Scenarios)
	assert.Len(t, l.states, 1)
}

func TestEngineFence(t *testing.T) {
	store := newStore(t, "Ramp")
	m, _ := newModel(t)
	e := NewEngine(Config{Period: time.Second}, store, m)
	e.AddSignal(Signal{Name: "ramp", Item: "Ramp", Gen: NewRamp(5, 10), Always: true})

	e.Fence()
	res := e.Tick(context.Background())
	assert.True(t, res.Skipped)
	assert.Equal(t, int32(0), read(t, store, "Ramp"))
}

type tickMetrics struct {
	mu       sync.Mutex
	ticks    int
	failures []int
}

func (m *tickMetrics) ObserveTick(_ time.Duration, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.failures = append(m.failures, failures)
}

func (m *tickMetrics) RecordSignalError(string)          {}
func (m *tickMetrics) RecordScenarioStep(string, error) {}

func TestEngineObservesInterruptedTick(t *testing.T) {
	tests := []struct {
		name      string
		interrupt func(e *Engine, cancel context.CancelFunc)
	}{
		{"cancelled", func(_ *Engine, cancel context.CancelFunc) { cancel() }},
		{"fenced", func(e *Engine, _ context.CancelFunc) { e.Fence() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, "First", "Second")
			m, _ := newModel(t)
			metrics := &tickMetrics{}
			e := NewEngine(Config{Period: time.Second}, store, m, WithMetrics(metrics))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			e.AddSignal(Signal{Name: "first", Item: "First", Always: true,
				Gen: GeneratorFunc(func(context.Context) (variant.Value, error) {
					tt.interrupt(e, cancel)
					return variant.Must(int32(1)), nil
				})})
			e.AddSignal(Signal{Name: "second", Item: "Second", Gen: NewRamp(5, 10), Always: true})

			res := e.Tick(ctx)
			assert.True(t, res.Interrupted)
			assert.False(t, res.Skipped)
			assert.Equal(t, 1, res.Signals)
			assert.Equal(t, int32(0), read(t, store, "Second"))

			metrics.mu.Lock()
			defer metrics.mu.Unlock()
			assert.Equal(t, 1, metrics.ticks)
			assert.Equal(t, []int{0}, metrics.failures)
		})
	}
}

func TestEngineSkippedTickNotObserved(t *testing.T) {
	store := newStore(t)
	m, _ := newModel(t)
	metrics := &tickMetrics{}
	e := NewEngine(Config{Period: time.Second}, store, m, WithMetrics(metrics))

	e.Tick(context.Background())
	e.Fence()
	assert.True(t, e.Tick(context.Background()).Skipped)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 1, metrics.ticks)
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	store := newStore(t, "Ramp")
	m, _ := newModel(t)
	e := NewEngine(Config{Period: 5 * time.Millisecond, SignalInterval: 5 * time.Millisecond}, store, m)
	e.AddSignal(Signal{Name: "ramp", Item: "Ramp", Gen: NewRamp(1, 1000)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Ticks() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Greater(t, read(t, store, "Ramp"), int32(0))
}

func TestTicksFor(t *testing.T) {
	assert.Equal(t, uint64(5), ticksFor(time.Second, 200*time.Millisecond))
	assert.Equal(t, uint64(600), ticksFor(2*time.Minute, 200*time.Millisecond))
	assert.Equal(t, uint64(1), ticksFor(time.Millisecond, time.Second))
}
