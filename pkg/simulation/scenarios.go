package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/variant"
)

// ConditionDriver is the part of the condition model a scenario drives.
type ConditionDriver interface {
	Transition(id alarms.ConditionID, t alarms.Transition) (alarms.ConditionState, error)
	RaiseEvent(ev alarms.Event) (alarms.Event, error)
}

// Scenario is an explicit state machine advanced once per Period.
type Scenario interface {
	Name() string
	Period() time.Duration
	Step(now time.Time, d ConditionDriver) error
}

// ToggleState is what a Toggle publishes when entering one of its states.
type ToggleState struct {
	Message   string
	Attribute variant.Value
}

// Toggle flips a single-state condition between active and inactive.
type Toggle struct {
	name      string
	period    time.Duration
	condition alarms.ConditionID
	onActive  ToggleState
	onClear   ToggleState
	active    bool
}

func NewToggle(name string, period time.Duration, cond alarms.ConditionID, onActive, onClear ToggleState) *Toggle {
	return &Toggle{name: name, period: period, condition: cond, onActive: onActive, onClear: onClear}
}

func (t *Toggle) Name() string          { return t.name }
func (t *Toggle) Period() time.Duration { return t.period }

// Active reports the state last published.
func (t *Toggle) Active() bool { return t.active }

func (t *Toggle) Step(now time.Time, d ConditionDriver) error {
	next := !t.active
	st := t.onClear
	if next {
		st = t.onActive
	}

	tr := alarms.Transition{Active: next, Timestamp: now}
	if st.Message != "" {
		msg := st.Message
		tr.Message = &msg
	}
	if !st.Attribute.IsEmpty() {
		tr.Attributes = []variant.Value{st.Attribute}
	}
	if _, err := d.Transition(t.condition, tr); err != nil {
		return err
	}
	t.active = next
	return nil
}

// Band maps the value range [Min, Max) to a sub-condition.
type Band struct {
	SubCondition alarms.SubConditionID
	Min, Max     int32
}

// Below is a band covering every value under limit.
func Below(sub alarms.SubConditionID, limit int32) Band {
	return Band{SubCondition: sub, Min: math.MinInt32, Max: limit}
}

// Above is a band covering every value over limit.
func Above(sub alarms.SubConditionID, limit int32) Band {
	return Band{SubCondition: sub, Min: limit + 1, Max: math.MaxInt32}
}

// Between covers [low, high).
func Between(sub alarms.SubConditionID, low, high int32) Band {
	return Band{SubCondition: sub, Min: low, Max: high}
}

// BandCycle drives a multi-state condition with a value that cycles through
// a fixed list. Each step advances to the next value, classifies it into a
// band and publishes the band's sub-condition (inactive when no band
// matches) with the value as the only attribute.
type BandCycle struct {
	name        string
	period      time.Duration
	condition   alarms.ConditionID
	values      []int32
	bands       []Band
	ackOverride map[alarms.SubConditionID]bool
	idx         int
}

// NewBandCycle starts at values[start]; the first Step publishes the value
// after it.
func NewBandCycle(name string, period time.Duration, cond alarms.ConditionID, values []int32, start int, bands []Band) (*BandCycle, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("band cycle %s: no values", name)
	}
	if start < 0 || start >= len(values) {
		return nil, fmt.Errorf("band cycle %s: start %d out of range", name, start)
	}
	return &BandCycle{
		name:        name,
		period:      period,
		condition:   cond,
		values:      append([]int32(nil), values...),
		bands:       append([]Band(nil), bands...),
		ackOverride: make(map[alarms.SubConditionID]bool),
		idx:         start,
	}, nil
}

// OverrideAck forces the ack-required flag whenever sub becomes active.
func (b *BandCycle) OverrideAck(sub alarms.SubConditionID, required bool) *BandCycle {
	b.ackOverride[sub] = required
	return b
}

func (b *BandCycle) Name() string          { return b.name }
func (b *BandCycle) Period() time.Duration { return b.period }

// Value is the value last published (or the start value).
func (b *BandCycle) Value() int32 { return b.values[b.idx] }

// Classify returns the sub-condition whose band holds v.
func (b *BandCycle) Classify(v int32) (alarms.SubConditionID, bool) {
	for _, band := range b.bands {
		if v >= band.Min && v < band.Max {
			return band.SubCondition, true
		}
	}
	return alarms.NoSubCondition, false
}

func (b *BandCycle) Step(now time.Time, d ConditionDriver) error {
	next := (b.idx + 1) % len(b.values)
	v := b.values[next]
	sub, active := b.Classify(v)

	tr := alarms.Transition{
		Active:       active,
		SubCondition: sub,
		Attributes:   []variant.Value{variant.Must(v)},
		Timestamp:    now,
	}
	if req, ok := b.ackOverride[sub]; ok && active {
		tr.AckRequired = &req
	}
	if _, err := d.Transition(b.condition, tr); err != nil {
		return err
	}
	b.idx = next
	return nil
}

// PeriodicEvent raises the same simple or tracking event every period.
type PeriodicEvent struct {
	name   string
	period time.Duration
	event  alarms.Event
	raised uint64
}

func NewPeriodicEvent(name string, period time.Duration, ev alarms.Event) *PeriodicEvent {
	return &PeriodicEvent{name: name, period: period, event: ev}
}

func (p *PeriodicEvent) Name() string          { return p.name }
func (p *PeriodicEvent) Period() time.Duration { return p.period }

// Raised counts successful steps.
func (p *PeriodicEvent) Raised() uint64 { return p.raised }

func (p *PeriodicEvent) Step(now time.Time, d ConditionDriver) error {
	ev := p.event
	ev.Timestamp = now
	ev.Attributes = append([]variant.Value(nil), p.event.Attributes...)
	if _, err := d.RaiseEvent(ev); err != nil {
		return err
	}
	p.raised++
	return nil
}
