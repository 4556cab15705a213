package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/variant"
)

type collectSink struct {
	mu  sync.Mutex
	got []Notification
	err error
}

func (c *collectSink) Name() string { return "collect" }

func (c *collectSink) Deliver(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return c.err
}

func (c *collectSink) snapshot() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.got...)
}

type blockingSink struct{ release chan struct{} }

func (b blockingSink) Name() string { return "blocking" }

func (b blockingSink) Deliver(ctx context.Context, _ Notification) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func itemChange(path string, v int32) items.Change {
	return items.Change{Handle: 1, Path: path, Sample: items.Sample{Value: variant.Must(v), Timestamp: time.Now()}}
}

func TestDispatcherDeliversInOrderToAllSinks(t *testing.T) {
	d := NewDispatcher(Config{QueueSize: 64}, nil)
	a, b := &collectSink{}, &collectSink{err: errors.New("sink down")}
	d.AddSink(a)
	d.AddSink(b)
	d.Start(context.Background())

	for i := 0; i < 10; i++ {
		d.ItemChanged(itemChange("SimulatedData.Ramp", int32(i)))
	}
	d.ConditionChanged(alarms.ConditionState{ID: 0x800, Active: true})
	d.EventRaised(alarms.Event{Message: "No response"})
	d.ShutdownRequested(ShutdownRequest{Item: "Commands.RequestShutdown", Reason: "stop"})

	require.True(t, d.Stop(time.Second))

	for _, s := range []*collectSink{a, b} {
		got := s.snapshot()
		require.Len(t, got, 13)
		for i := 0; i < 10; i++ {
			assert.Equal(t, KindItemChanged, got[i].Kind)
			assert.Equal(t, int32(i), got[i].Item.Value.Interface())
		}
		assert.Equal(t, KindConditionChanged, got[10].Kind)
		assert.Equal(t, KindEvent, got[11].Kind)
		assert.Equal(t, KindShutdownRequest, got[12].Kind)
	}

	ids := map[uuid.UUID]bool{}
	for _, n := range a.snapshot() {
		assert.False(t, ids[n.ID], "duplicate id")
		ids[n.ID] = true
		assert.False(t, n.At.IsZero())
	}

	delivered, dropped := d.Stats()
	assert.Equal(t, uint64(13), delivered)
	assert.Zero(t, dropped)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(Config{QueueSize: 2}, nil)

	// not started: nothing drains the queue
	for i := 0; i < 5; i++ {
		d.ItemChanged(itemChange("a", int32(i)))
	}
	_, dropped := d.Stats()
	assert.Equal(t, uint64(3), dropped)
}

func TestDispatcherStopTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	d := NewDispatcher(Config{}, nil)
	d.AddSink(blockingSink{release: release})
	d.Start(context.Background())
	d.ItemChanged(itemChange("a", 1))

	start := time.Now()
	assert.False(t, d.Stop(50*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, d.Stop(time.Millisecond), "second stop is a no-op")
}

func TestStopWithoutStart(t *testing.T) {
	d := NewDispatcher(Config{}, nil)
	assert.True(t, d.Stop(time.Millisecond))
}

func TestRecentSinkRing(t *testing.T) {
	r := NewRecentSink(3)
	ctx := context.Background()

	require.NoError(t, r.Deliver(ctx, Notification{Kind: KindItemChanged}))
	assert.Empty(t, r.Recent(0), "item changes are filtered by default")

	for i := 1; i <= 5; i++ {
		require.NoError(t, r.Deliver(ctx, Notification{Kind: KindEvent, Event: &alarms.Event{Severity: uint32(i)}}))
	}
	got := r.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, []uint32{5, 4, 3}, []uint32{got[0].Event.Severity, got[1].Event.Severity, got[2].Event.Severity})

	assert.Len(t, r.Recent(2), 2)
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSSinkSubjectsAndPayload(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATSSink(pub, "plant", false)
	ctx := context.Background()

	require.NoError(t, s.Deliver(ctx, Notification{Kind: KindItemChanged, Item: &ItemChange{Path: "x"}}))
	assert.Empty(t, pub.subjects, "item changes skipped unless enabled")

	st := alarms.ConditionState{ID: 0x804, Active: true, SubCondition: 0x552, Attributes: []variant.Value{variant.Must(int32(80))}}
	require.NoError(t, s.Deliver(ctx, Notification{ID: uuid.New(), Kind: KindConditionChanged, Condition: &st}))
	require.NoError(t, s.Deliver(ctx, Notification{Kind: KindShutdownRequest, Shutdown: &ShutdownRequest{Reason: "r"}}))

	assert.Equal(t, []string{"plant.conditions.changed", "plant.control.shutdown"}, pub.subjects)

	var decoded struct {
		Kind      string                `json:"kind"`
		Condition alarms.ConditionState `json:"condition"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "condition_changed", decoded.Kind)
	assert.Equal(t, alarms.SubConditionID(0x552), decoded.Condition.SubCondition)
	assert.Equal(t, int32(80), decoded.Condition.Attributes[0].Interface())

	assert.Equal(t, "daserver.events", NewNATSSink(pub, "", true).Subject(KindEvent))
}
