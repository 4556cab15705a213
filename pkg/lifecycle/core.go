package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/internal/telemetry"
	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/notify"
	"github.com/marmos91/daserver/pkg/variant"
)

// DefaultControlItem is the item whose writes request a server shutdown.
const DefaultControlItem = "Commands.RequestShutdown"

// ShutdownNotifier publishes shutdown-request notifications.
type ShutdownNotifier interface {
	ShutdownRequested(r notify.ShutdownRequest)
}

// ServerCore is the aggregate shared by the lifecycle tasks and client
// sessions. It is passed explicitly; there is no package-level instance.
type ServerCore struct {
	store    *items.Store
	model    *alarms.Model
	host     Host
	notifier ShutdownNotifier
	now      func() time.Time

	controlPath string

	stateMu sync.Mutex
	state   atomic.Int32
	metrics Metrics
}

// CoreOption configures a ServerCore.
type CoreOption func(*ServerCore)

func WithHost(h Host) CoreOption { return func(c *ServerCore) { c.host = h } }

func WithShutdownNotifier(n ShutdownNotifier) CoreOption {
	return func(c *ServerCore) { c.notifier = n }
}

// WithControlItem overrides the shutdown control item path.
func WithControlItem(path string) CoreOption { return func(c *ServerCore) { c.controlPath = path } }

func WithCoreMetrics(m Metrics) CoreOption { return func(c *ServerCore) { c.metrics = m } }

func WithCoreClock(now func() time.Time) CoreOption { return func(c *ServerCore) { c.now = now } }

// NewCore wraps a store and a model. The server starts in StateNoConfig.
func NewCore(store *items.Store, model *alarms.Model, opts ...CoreOption) *ServerCore {
	c := &ServerCore{
		store:       store,
		model:       model,
		controlPath: DefaultControlItem,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ServerCore) Items() *items.Store  { return c.store }
func (c *ServerCore) Model() *alarms.Model { return c.model }

// State returns the current server state.
func (c *ServerCore) State() ServerState {
	return ServerState(c.state.Load())
}

// Ready reports whether the server is Running.
func (c *ServerCore) Ready() bool {
	return c.State() == StateRunning
}

// setState publishes a state change to the host. Only NoConfig may be left;
// later calls are ignored and reported as false.
func (c *ServerCore) setState(s ServerState) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	cur := c.State()
	if cur != StateNoConfig || s == StateNoConfig {
		return false
	}
	c.state.Store(int32(s))
	logger.Info("Server state changed", logger.KeyState, s.String(), "previous", cur.String())
	if c.metrics != nil {
		c.metrics.RecordServerState(s.String())
	}
	if c.host != nil {
		c.host.ServerStateChanged(s)
	}
	return true
}

// ReadItem returns the current sample of a readable item.
func (c *ServerCore) ReadItem(ctx context.Context, h items.Handle) (items.Sample, error) {
	ctx, span := telemetry.StartItemSpan(ctx, telemetry.SpanItemRead, uint64(h))
	defer span.End()

	info, err := c.store.Info(h)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return items.Sample{}, err
	}
	telemetry.SetAttributes(ctx, telemetry.ItemPath(info.Path), telemetry.ItemType(info.Type.String()))
	if !info.Access.Readable() {
		err := errors.NewNotReadableError(info.Path)
		telemetry.RecordError(ctx, err)
		return items.Sample{}, err
	}
	sample, err := c.store.GetValue(h)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return items.Sample{}, err
	}
	telemetry.SetAttributes(ctx, telemetry.Quality(sample.Quality.String()))
	return sample, nil
}

// ReadItemByPath resolves path and reads it.
func (c *ServerCore) ReadItemByPath(ctx context.Context, path string) (items.Info, items.Sample, error) {
	h, err := c.store.Lookup(path)
	if err != nil {
		return items.Info{}, items.Sample{}, err
	}
	info, err := c.store.Info(h)
	if err != nil {
		return items.Info{}, items.Sample{}, err
	}
	s, err := c.ReadItem(ctx, h)
	return info, s, err
}

// WriteItem stores a client value with quality Good. A successful write of
// the control item raises a shutdown request carrying the written string.
func (c *ServerCore) WriteItem(ctx context.Context, h items.Handle, v variant.Value) error {
	ctx, span := telemetry.StartItemSpan(ctx, telemetry.SpanItemWrite, uint64(h))
	defer span.End()

	info, err := c.store.Info(h)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	telemetry.SetAttributes(ctx, telemetry.ItemPath(info.Path), telemetry.ItemType(info.Type.String()))
	if !info.Access.Writable() {
		err := errors.NewNotWritableError(info.Path)
		telemetry.RecordError(ctx, err)
		return err
	}
	if err := c.store.SetValue(h, v, items.QualityGood, c.now()); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	if c.isControl(info.Path) {
		reason, _ := v.Str()
		c.requestShutdown(ctx, info.Path, reason)
	}
	return nil
}

// WriteItemByPath resolves path and writes it.
func (c *ServerCore) WriteItemByPath(ctx context.Context, path string, v variant.Value) (items.Handle, error) {
	h, err := c.store.Lookup(path)
	if err != nil {
		return items.InvalidHandle, err
	}
	return h, c.WriteItem(ctx, h, v)
}

// isControl matches by path. The handle changes when the item is re-added.
func (c *ServerCore) isControl(path string) bool {
	return path == c.controlPath
}

func (c *ServerCore) requestShutdown(ctx context.Context, path, reason string) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanShutdownRequest)
	defer span.End()

	logger.WarnCtx(ctx, "Shutdown requested by client", logger.Item(path), "reason", reason)
	if c.notifier != nil {
		c.notifier.ShutdownRequested(notify.ShutdownRequest{Item: path, Reason: reason})
	}
	if c.host != nil {
		c.host.ShutdownRequested(reason)
	}
}

// Acknowledge passes an operator acknowledgment to the condition model.
func (c *ServerCore) Acknowledge(ctx context.Context, id alarms.ConditionID, sub alarms.SubConditionID, actor string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAcknowledge)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.ConditionID(uint32(id)), telemetry.SubCondition(uint32(sub)))

	if err := c.model.Acknowledge(id, sub); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("acknowledge %s: %w", id, err)
	}
	logger.InfoCtx(ctx, "Condition acknowledged", logger.Condition(uint32(id)), logger.SubCondition(uint32(sub)), "actor", actor)
	return nil
}

// Status is a point-in-time summary of the core.
type Status struct {
	State      ServerState `json:"state"`
	Items      int         `json:"items"`
	Conditions int         `json:"conditions"`
	Active     int         `json:"active_conditions"`
	Sealed     bool        `json:"sealed"`
}

func (c *ServerCore) Status() Status {
	st := Status{
		State:      c.State(),
		Items:      c.store.Count(),
		Conditions: c.model.Len(),
		Sealed:     c.model.Sealed(),
	}
	for _, cs := range c.model.Conditions() {
		if cs.Active {
			st.Active++
		}
	}
	return st
}
