// Package simulation implements the refresh engine: a fixed-period loop that
// recomputes synthetic signals into the item store and advances condition
// scenarios while the server is running.
package simulation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/variant"
)

// ItemWriter is the part of the item store the engine writes through.
type ItemWriter interface {
	Lookup(path string) (items.Handle, error)
	SetValue(h items.Handle, v variant.Value, q items.Quality, ts time.Time) error
}

// Metrics is the optional instrumentation hook of the engine.
type Metrics interface {
	ObserveTick(d time.Duration, failures int)
	RecordSignalError(signal string)
	RecordScenarioStep(scenario string, err error)
}

// Config holds the engine timing.
type Config struct {
	// Period is the tick interval. Default: 200ms
	Period time.Duration
	// SignalInterval is how often synthetic signals are recomputed.
	// Rounded to whole ticks. Default: 1s
	SignalInterval time.Duration
}

// Signal binds a generator to an item path. Always signals are written on
// every tick regardless of server readiness; the others follow
// SignalInterval and only while ready.
type Signal struct {
	Name   string
	Item   string
	Gen    Generator
	Always bool
}

type signalBinding struct {
	Signal
	handle items.Handle
}

type scenarioBinding struct {
	Scenario
	every uint64
}

// TickResult summarizes one tick.
type TickResult struct {
	Tick      uint64
	Signals   int
	Scenarios int
	Failures  int
	Skipped   bool
	// Interrupted is set when cancellation or the fence ended the pass early.
	Interrupted bool
}

// Engine is the refresh engine. Configure it with AddSignal and AddScenario
// before Run; Tick may also be driven directly.
type Engine struct {
	cfg         Config
	signalEvery uint64
	store       ItemWriter
	driver      ConditionDriver
	ready       func() bool
	metrics     Metrics
	now         func() time.Time

	mu        sync.Mutex
	signals   []*signalBinding
	scenarios []*scenarioBinding

	tick   atomic.Uint64
	fenced atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithReadiness gates signal recomputation and scenarios. The default
// gate is always open.
func WithReadiness(ready func() bool) Option { return func(e *Engine) { e.ready = ready } }

func WithMetrics(m Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(cfg Config, store ItemWriter, driver ConditionDriver, opts ...Option) *Engine {
	if cfg.Period <= 0 {
		cfg.Period = 200 * time.Millisecond
	}
	if cfg.SignalInterval <= 0 {
		cfg.SignalInterval = time.Second
	}
	e := &Engine{
		cfg:         cfg,
		signalEvery: ticksFor(cfg.SignalInterval, cfg.Period),
		store:       store,
		driver:      driver,
		ready:       func() bool { return true },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ticksFor(d, period time.Duration) uint64 {
	n := uint64((d + period/2) / period)
	if n == 0 {
		return 1
	}
	return n
}

func (e *Engine) AddSignal(s Signal) {
	e.mu.Lock()
	e.signals = append(e.signals, &signalBinding{Signal: s})
	e.mu.Unlock()
}

func (e *Engine) AddScenario(s Scenario) {
	e.mu.Lock()
	e.scenarios = append(e.scenarios, &scenarioBinding{Scenario: s, every: ticksFor(s.Period(), e.cfg.Period)})
	e.mu.Unlock()
}

// Period returns the tick interval.
func (e *Engine) Period() time.Duration { return e.cfg.Period }

// Fence makes every later tick a no-op. The lifecycle controller fences an
// engine whose goroutine it had to abandon.
func (e *Engine) Fence() { e.fenced.Store(true) }

// Run ticks every Period until ctx is cancelled. Waiting for the next tick
// is the only blocking point and is always selected against ctx.
func (e *Engine) Run(ctx context.Context) error {
	ctx = logger.ForTask(ctx, "refresh")
	logger.InfoCtx(ctx, "Refresh engine started", "period", e.cfg.Period.String(), "signal_every_ticks", e.signalEvery)

	ticker := time.NewTicker(e.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Refresh engine stopped", logger.Tick(e.Ticks()))
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Ticks returns the number of ticks run so far.
func (e *Engine) Ticks() uint64 {
	return e.tick.Load()
}

// Tick runs one refresh pass. Failing signals and scenarios are logged and
// skipped. A pass cut short by cancellation or the fence is still observed.
func (e *Engine) Tick(ctx context.Context) (res TickResult) {
	if e.fenced.Load() {
		return TickResult{Skipped: true}
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveTick(time.Since(start), res.Failures)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	tick := e.tick.Add(1)
	res = TickResult{Tick: tick}
	ready := e.ready()
	recompute := ready && tick%e.signalEvery == 0
	now := e.now()

	for _, s := range e.signals {
		if !s.Always && !recompute {
			continue
		}
		if ctx.Err() != nil || e.fenced.Load() {
			res.Interrupted = true
			return res
		}
		if err := e.refreshSignal(ctx, s, now); err != nil {
			if !ready && errors.IsUnknownReferenceError(err) {
				// population has not created the item yet
				continue
			}
			res.Failures++
			logger.WarnCtx(ctx, "Signal refresh failed", logger.Signal(s.Name), logger.Item(s.Item), logger.Err(err))
			if e.metrics != nil {
				e.metrics.RecordSignalError(s.Name)
			}
			continue
		}
		res.Signals++
	}

	if ready {
		for _, sc := range e.scenarios {
			if tick%sc.every != 0 {
				continue
			}
			if ctx.Err() != nil || e.fenced.Load() {
				res.Interrupted = true
				return res
			}
			err := sc.Step(now, e.driver)
			if e.metrics != nil {
				e.metrics.RecordScenarioStep(sc.Name(), err)
			}
			if err != nil {
				res.Failures++
				logger.WarnCtx(ctx, "Scenario step failed", logger.Scenario(sc.Name()), logger.Err(err))
				continue
			}
			res.Scenarios++
		}
	}

	return res
}

func (e *Engine) refreshSignal(ctx context.Context, s *signalBinding, now time.Time) error {
	if s.handle == items.InvalidHandle {
		h, err := e.store.Lookup(s.Item)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", s.Item, err)
		}
		s.handle = h
	}

	v, err := s.Gen.Next(ctx)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if e.fenced.Load() {
		return nil
	}

	err = e.store.SetValue(s.handle, v, items.QualityGood, now)
	if errors.IsUnknownHandleError(err) {
		// item was removed; resolve again next time
		s.handle = items.InvalidHandle
	}
	return err
}
