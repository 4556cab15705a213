package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
)

// Sink receives notifications in the order they were produced.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Metrics is the optional instrumentation hook of the dispatcher.
type Metrics interface {
	RecordDelivered(sink string, kind Kind, err error)
	RecordDropped(kind Kind)
	RecordQueueDepth(n int)
}

// Config holds dispatcher settings.
type Config struct {
	// QueueSize bounds the notifications waiting for delivery. When the queue
	// is full new notifications are dropped. Default: 4096
	QueueSize int
}

// Dispatcher implements items.Observer and alarms.Listener. Producers
// enqueue without blocking; one worker delivers to every sink, which keeps
// per-producer order intact.
type Dispatcher struct {
	queue   chan Notification
	metrics Metrics
	now     func() time.Time

	sinksMu sync.RWMutex
	sinks   []Sink

	mu        sync.Mutex
	started   bool
	stopped   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

var (
	_ items.Observer  = (*Dispatcher)(nil)
	_ alarms.Listener = (*Dispatcher)(nil)
)

func NewDispatcher(cfg Config, m Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	return &Dispatcher{
		queue:     make(chan Notification, cfg.QueueSize),
		metrics:   m,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// AddSink registers a sink. Sinks added after Start receive only later
// notifications.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinksMu.Lock()
	d.sinks = append(d.sinks, s)
	d.sinksMu.Unlock()
}

func (d *Dispatcher) ItemChanged(c items.Change) {
	d.publish(Notification{
		Kind: KindItemChanged,
		Item: &ItemChange{Handle: c.Handle, Path: c.Path, Sample: c.Sample},
	})
}

func (d *Dispatcher) ConditionChanged(s alarms.ConditionState) {
	d.publish(Notification{Kind: KindConditionChanged, Condition: &s})
}

func (d *Dispatcher) EventRaised(e alarms.Event) {
	d.publish(Notification{Kind: KindEvent, Event: &e})
}

func (d *Dispatcher) ShutdownRequested(r ShutdownRequest) {
	d.publish(Notification{Kind: KindShutdownRequest, Shutdown: &r})
}

func (d *Dispatcher) publish(n Notification) {
	n.ID = uuid.New()
	n.At = d.now()

	select {
	case d.queue <- n:
		if d.metrics != nil {
			d.metrics.RecordQueueDepth(len(d.queue))
		}
	default:
		total := d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDropped(n.Kind)
		}
		// first drop and then every 1000th, the refresh loop can overrun a slow sink
		if total == 1 || total%1000 == 0 {
			logger.Warn("Notification queue full, dropping", "kind", n.Kind.String(), "dropped_total", total)
		}
	}
}

// Start launches the delivery worker. Calling Start twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	logger.Debug("Starting notification dispatcher", "queue_size", cap(d.queue))
	go d.run(logger.ForTask(ctx, "notify"))
}

// Stop signals the worker, lets it drain the queue and waits up to timeout.
// It reports whether the worker finished in time.
func (d *Dispatcher) Stop(timeout time.Duration) bool {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return true
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.stopCh)

	select {
	case <-d.stoppedCh:
		logger.Debug("Notification dispatcher stopped", "delivered", d.delivered.Load(), "dropped", d.dropped.Load())
		return true
	case <-time.After(timeout):
		logger.Warn("Notification dispatcher stop timed out", "pending", len(d.queue))
		return false
	}
}

// Stats returns the delivered and dropped notification counts.
func (d *Dispatcher) Stats() (delivered, dropped uint64) {
	return d.delivered.Load(), d.dropped.Load()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.stoppedCh)

	for {
		select {
		case <-d.stopCh:
			d.drain(ctx)
			return
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	d.sinksMu.RLock()
	sinks := d.sinks
	d.sinksMu.RUnlock()

	for _, s := range sinks {
		err := s.Deliver(ctx, n)
		if err != nil {
			logger.WarnCtx(ctx, "Notification delivery failed", logger.Sink(s.Name()), "kind", n.Kind.String(), logger.Err(err))
		}
		if d.metrics != nil {
			d.metrics.RecordDelivered(s.Name(), n.Kind, err)
		}
	}
	d.delivered.Add(1)
}
