package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/internal/telemetry"
	"github.com/marmos91/daserver/pkg/population"
	"go.opentelemetry.io/otel/codes"
)

// Default grace periods, measured from the shutdown signal.
const (
	DefaultPopulationGrace = 10 * time.Second
	DefaultRefreshGrace    = 30 * time.Second
)

// Refresher is the periodic refresh task. Run must return soon after ctx is
// cancelled; Fence must make any later work a no-op.
type Refresher interface {
	Run(ctx context.Context) error
	Fence()
}

// Metrics is the optional instrumentation hook of the lifecycle.
type Metrics interface {
	ObservePopulationStep(step string, d time.Duration, err error)
	RecordServerState(state string)
	RecordForcedTermination(task string)
}

// AuxiliaryServer is an HTTP server (API, metrics) run alongside the core.
type AuxiliaryServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port() int
}

// Config holds the controller timing.
type Config struct {
	PopulationGrace time.Duration
	RefreshGrace    time.Duration
	// AuxiliaryStopTimeout bounds the stop of each auxiliary server.
	AuxiliaryStopTimeout time.Duration
}

// TaskReport describes how one task ended.
type TaskReport struct {
	Task string `json:"task"`
	// Exited is true when the task returned before its grace period ran out.
	Exited bool `json:"exited"`
	// Forced is true when the task was abandoned and fenced.
	Forced bool          `json:"forced"`
	Waited time.Duration `json:"waited"`
	Err    error         `json:"-"`
}

// ShutdownReport is returned by Stop.
type ShutdownReport struct {
	Population TaskReport    `json:"population"`
	Refresh    TaskReport    `json:"refresh"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Forced reports whether any task had to be abandoned.
func (r ShutdownReport) Forced() bool {
	return r.Population.Forced || r.Refresh.Forced
}

// Controller starts the population and refresh tasks and stops them within
// bounded time.
type Controller struct {
	core    *ServerCore
	plan    *population.Plan
	refresh Refresher
	cfg     Config
	metrics Metrics

	aux []AuxiliaryServer

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	popDone  chan struct{}
	refDone  chan struct{}
	popErr   error
	refErr   error
	report   ShutdownReport
	settled  chan struct{}
	settle   sync.Once
	popFence atomic.Bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

func WithMetrics(m Metrics) ControllerOption { return func(c *Controller) { c.metrics = m } }

// NewController wires the core to its plan and refresher. Zero grace
// periods take the defaults.
func NewController(core *ServerCore, plan *population.Plan, refresh Refresher, cfg Config, opts ...ControllerOption) *Controller {
	if cfg.PopulationGrace <= 0 {
		cfg.PopulationGrace = DefaultPopulationGrace
	}
	if cfg.RefreshGrace <= 0 {
		cfg.RefreshGrace = DefaultRefreshGrace
	}
	if cfg.AuxiliaryStopTimeout <= 0 {
		cfg.AuxiliaryStopTimeout = 5 * time.Second
	}
	c := &Controller{
		core:    core,
		plan:    plan,
		refresh: refresh,
		cfg:     cfg,
		settled: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil && core.metrics == nil {
		core.metrics = c.metrics
	}
	return c
}

// AddAuxiliaryServer registers a server started by Serve. Must be called
// before Serve.
func (c *Controller) AddAuxiliaryServer(s AuxiliaryServer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		panic("cannot add an auxiliary server after the controller started")
	}
	if s != nil {
		c.aux = append(c.aux, s)
		logger.Info("Auxiliary server registered", "port", s.Port())
	}
}

// Core returns the server core.
func (c *Controller) Core() *ServerCore { return c.core }

// Start launches the population and refresh tasks. Both run until done or
// until Stop (or cancellation of ctx).
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("controller already started")
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.popDone = make(chan struct{})
	c.refDone = make(chan struct{})

	logger.Info("Starting server core", "steps", c.plan.Len(),
		"population_grace", c.cfg.PopulationGrace.String(), "refresh_grace", c.cfg.RefreshGrace.String())

	go func() {
		defer close(c.popDone)
		c.popErr = c.populate(logger.ForTask(runCtx, "population"))
	}()
	go func() {
		defer close(c.refDone)
		if c.refresh != nil {
			c.refErr = c.refresh.Run(runCtx)
		} else {
			<-runCtx.Done()
		}
	}()
	return nil
}

// populate runs the plan in order. The first failing step leaves the
// server Failed; earlier steps are not undone.
func (c *Controller) populate(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPopulation)
	defer span.End()
	start := time.Now()

	target := &population.Target{Model: c.core.model, Store: c.core.store}
	for i, step := range c.plan.Steps() {
		if c.popFence.Load() {
			return fmt.Errorf("population abandoned before step %s", step.Name)
		}
		if err := ctx.Err(); err != nil {
			logger.InfoCtx(ctx, "Population interrupted", logger.Step(step.Name))
			return err
		}

		stepCtx, stepSpan := telemetry.StartStepSpan(ctx, i, step.Name)
		stepStart := time.Now()
		err := step.Run(stepCtx, target)
		if c.metrics != nil {
			c.metrics.ObservePopulationStep(step.Name, time.Since(stepStart), err)
		}
		if err != nil {
			telemetry.RecordError(stepCtx, err)
			stepSpan.End()
			if ctx.Err() != nil {
				logger.InfoCtx(ctx, "Population interrupted", logger.Step(step.Name), logger.Err(err))
				return err
			}
			logger.ErrorCtx(ctx, "Population step failed", logger.Step(step.Name), "index", i, logger.Err(err))
			if !c.popFence.Load() {
				c.core.setState(StateFailed)
			}
			span.SetAttributes(telemetry.ServerState(c.core.State().String()))
			telemetry.SetStatus(ctx, codes.Error, "population failed")
			return fmt.Errorf("population step %s: %w", step.Name, err)
		}
		stepSpan.End()
		logger.DebugCtx(ctx, "Population step done", logger.Step(step.Name), logger.DurationMs(time.Since(stepStart)))
	}

	if c.popFence.Load() {
		return fmt.Errorf("population abandoned after the last step")
	}
	c.core.model.Seal()
	c.core.setState(StateRunning)
	span.SetAttributes(telemetry.ServerState(StateRunning.String()), telemetry.ItemCount(c.core.store.Count()))
	logger.InfoCtx(ctx, "Population complete",
		logger.Count(c.core.store.Count()), "conditions", c.core.model.Len(), logger.DurationMs(time.Since(start)))
	return nil
}

// WaitSettled blocks until population has finished (either way) or ctx is
// done, and returns the resulting state.
func (c *Controller) WaitSettled(ctx context.Context) (ServerState, error) {
	c.mu.Lock()
	done := c.popDone
	c.mu.Unlock()
	if done == nil {
		return c.core.State(), fmt.Errorf("controller not started")
	}
	select {
	case <-done:
		return c.core.State(), c.popErr
	case <-ctx.Done():
		return c.core.State(), ctx.Err()
	}
}

// Stop signals both tasks and waits for them, each up to its grace period
// measured from the signal. A task that does not exit in time is abandoned
// and fenced. Stop never blocks longer than the larger grace period, and
// calling it again returns the first report.
func (c *Controller) Stop() ShutdownReport {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ShutdownReport{
			Population: TaskReport{Task: "population", Exited: true},
			Refresh:    TaskReport{Task: "refresh", Exited: true},
		}
	}
	if c.stopped {
		c.mu.Unlock()
		<-c.settled
		return c.report
	}
	c.stopped = true
	c.mu.Unlock()

	_, span := telemetry.StartSpan(context.Background(), telemetry.SpanShutdown)
	defer span.End()

	signal := time.Now()
	logger.Info("Stopping server core")
	c.cancel()

	report := ShutdownReport{
		Population: c.await("population", c.popDone, signal.Add(c.cfg.PopulationGrace), func() { c.popFence.Store(true) }),
		Refresh:    c.await("refresh", c.refDone, signal.Add(c.cfg.RefreshGrace), c.fenceRefresh),
	}
	if report.Population.Exited {
		report.Population.Err = c.popErr
	}
	if report.Refresh.Exited {
		report.Refresh.Err = c.refErr
	}
	report.Elapsed = time.Since(signal)

	span.SetAttributes(telemetry.Forced(report.Forced()))
	logger.Info("Server core stopped",
		"population_forced", report.Population.Forced,
		"refresh_forced", report.Refresh.Forced,
		logger.DurationMs(report.Elapsed))

	c.report = report
	c.settle.Do(func() { close(c.settled) })
	return report
}

func (c *Controller) fenceRefresh() {
	if c.refresh != nil {
		c.refresh.Fence()
	}
}

func (c *Controller) await(task string, done <-chan struct{}, deadline time.Time, fence func()) TaskReport {
	start := time.Now()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-done:
		return TaskReport{Task: task, Exited: true, Waited: time.Since(start)}
	case <-timer.C:
	}

	fence()
	logger.Warn("Task did not stop within its grace period, abandoning it", logger.Task(task),
		"grace_deadline", deadline.Format(time.RFC3339Nano))
	if c.metrics != nil {
		c.metrics.RecordForcedTermination(task)
	}
	return TaskReport{Task: task, Forced: true, Waited: time.Since(start)}
}

// Serve starts the core and every auxiliary server, blocks until ctx is
// cancelled or an auxiliary server fails, then stops everything.
func (c *Controller) Serve(ctx context.Context) (ShutdownReport, error) {
	if err := c.Start(ctx); err != nil {
		return ShutdownReport{}, err
	}

	c.mu.Lock()
	aux := append([]AuxiliaryServer(nil), c.aux...)
	c.mu.Unlock()

	auxErr := make(chan error, len(aux))
	for _, s := range aux {
		go func(s AuxiliaryServer) {
			if err := s.Start(ctx); err != nil {
				logger.Error("Auxiliary server error", "port", s.Port(), logger.Err(err))
				auxErr <- err
			}
		}(s)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case err := <-auxErr:
		logger.Error("Auxiliary server failed, initiating shutdown", logger.Err(err))
		serveErr = fmt.Errorf("auxiliary server: %w", err)
	}

	for _, s := range aux {
		stopCtx, cancel := context.WithTimeout(context.Background(), c.cfg.AuxiliaryStopTimeout)
		if err := s.Stop(stopCtx); err != nil {
			logger.Warn("Auxiliary server shutdown error", "port", s.Port(), logger.Err(err))
		}
		cancel()
	}

	return c.Stop(), serveErr
}
