package alarms

import (
	"fmt"

	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/variant"
)

// Transition moves a condition to a new state and publishes exactly one
// condition-changed notification carrying the full new state.
//
// For multi-state definitions an active transition must name a sub-condition
// of the definition; severity, message and ack flag then default to that
// sub-condition's. Inactive transitions clear the sub-condition. Single-state
// definitions ignore SubCondition. The attribute vector must match the
// category schema in length and type. On error the state is unchanged and
// nothing is published.
func (m *Model) Transition(id ConditionID, t Transition) (ConditionState, error) {
	next, err := m.transition(id, t)
	if err != nil {
		m.reject("Transition", err)
		return ConditionState{}, err
	}
	return next, nil
}

func (m *Model) transition(id ConditionID, t Transition) (ConditionState, error) {
	m.mu.RLock()
	c, ok := m.conditions[id]
	if !ok {
		m.mu.RUnlock()
		return ConditionState{}, errors.NewUnknownReferenceError("condition", id.String())
	}
	def := m.definitions[c.def]
	schema := m.categories[c.category].Attributes

	severity, message, ackRequired := def.Severity, def.Message, def.AckRequired
	sub := NoSubCondition
	var subErr error
	if def.Kind == MultiState && t.Active {
		sc, found := def.subCondition(t.SubCondition)
		if found {
			sub = sc.ID
			severity, message, ackRequired = sc.Severity, sc.Message, sc.AckRequired
		} else {
			subErr = errors.NewUnknownReferenceError("sub-condition",
				fmt.Sprintf("%s/%s (definition has %d sub-conditions)", def.ID, t.SubCondition, len(def.SubConditions)))
		}
	}
	defName := def.Name
	types := make([]variant.Type, len(schema))
	for i, a := range schema {
		types[i] = a.Type
	}
	m.mu.RUnlock()

	if subErr != nil {
		return ConditionState{}, subErr
	}
	if len(t.Attributes) != len(types) {
		return ConditionState{}, errors.NewArityMismatchError(len(types), len(t.Attributes), id.String())
	}
	for i, v := range t.Attributes {
		if v.Type() != types[i] {
			return ConditionState{}, errors.NewInvalidTypeError(
				fmt.Sprintf("attribute %d is %s, want %s", i, v.Type(), types[i]), id.String())
		}
	}

	if t.Message != nil {
		message = *t.Message
	}
	if t.AckRequired != nil {
		ackRequired = *t.AckRequired
	}
	ts := t.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	next := ConditionState{
		ID:           prev.ID,
		Source:       prev.Source,
		Definition:   prev.Definition,
		Category:     prev.Category,
		Active:       t.Active,
		SubCondition: sub,
		Severity:     severity,
		Quality:      t.Quality,
		AckRequired:  ackRequired,
		Message:      message,
		Attributes:   append([]variant.Value(nil), t.Attributes...),
		Timestamp:    ts,
		Sequence:     prev.Sequence + 1,
	}
	next.Changes = diff(prev, next)
	c.state = next

	if m.metrics != nil {
		m.metrics.RecordTransition(defName, next.Active)
	}
	if m.listener != nil {
		m.listener.ConditionChanged(next.clone())
	}
	return next.clone(), nil
}

func diff(prev, next ConditionState) ChangeMask {
	var m ChangeMask
	if prev.Active != next.Active {
		m |= ChangeActive
	}
	if prev.SubCondition != next.SubCondition {
		m |= ChangeSubCondition
	}
	if prev.Severity != next.Severity {
		m |= ChangeSeverity
	}
	if prev.Message != next.Message {
		m |= ChangeMessage
	}
	if prev.Quality != next.Quality {
		m |= ChangeQuality
	}
	if prev.AckRequired != next.AckRequired {
		m |= ChangeAckRequired
	}
	if len(prev.Attributes) != len(next.Attributes) {
		m |= ChangeAttributes
	} else {
		for i := range prev.Attributes {
			if !prev.Attributes[i].Equal(next.Attributes[i]) {
				m |= ChangeAttributes
				break
			}
		}
	}
	return m
}

// RaiseEvent publishes a simple or tracking event. The event kind is taken
// from its category; condition categories are rejected. Actor is only kept
// for tracking events.
func (m *Model) RaiseEvent(ev Event) (Event, error) {
	out, err := m.raiseEvent(ev)
	if err != nil {
		m.reject("RaiseEvent", err)
		return Event{}, err
	}
	return out, nil
}

// RaiseSimpleEvent raises ev, which must belong to a simple category.
func (m *Model) RaiseSimpleEvent(ev Event) (Event, error) {
	return m.raiseKind("RaiseSimpleEvent", KindSimple, ev)
}

// RaiseTrackingEvent raises ev, which must belong to a tracking category.
// ev.Actor names who made the change.
func (m *Model) RaiseTrackingEvent(ev Event) (Event, error) {
	return m.raiseKind("RaiseTrackingEvent", KindTracking, ev)
}

func (m *Model) raiseKind(op string, want EventKind, ev Event) (Event, error) {
	m.mu.RLock()
	cat, ok := m.categories[ev.Category]
	var kind EventKind
	if ok {
		kind = cat.Kind
	}
	m.mu.RUnlock()

	if ok && kind != want {
		err := errors.NewInvalidArgumentError(fmt.Sprintf("category %s carries %s events, not %s", ev.Category, kind, want))
		m.reject(op, err)
		return Event{}, err
	}
	out, err := m.raiseEvent(ev)
	if err != nil {
		m.reject(op, err)
		return Event{}, err
	}
	return out, nil
}

func (m *Model) raiseEvent(ev Event) (Event, error) {
	m.mu.RLock()
	cat, ok := m.categories[ev.Category]
	if !ok {
		m.mu.RUnlock()
		return Event{}, errors.NewUnknownReferenceError("category", ev.Category.String())
	}
	kind := cat.Kind
	types := make([]variant.Type, len(cat.Attributes))
	for i, a := range cat.Attributes {
		types[i] = a.Type
	}
	_, srcOK := m.sources[ev.Source]
	m.mu.RUnlock()

	if kind == KindCondition {
		return Event{}, errors.NewInvalidArgumentError(fmt.Sprintf("category %s only carries condition events", ev.Category))
	}
	if !srcOK {
		return Event{}, errors.NewUnknownReferenceError("source", ev.Source.String())
	}
	if len(ev.Attributes) != len(types) {
		return Event{}, errors.NewArityMismatchError(len(types), len(ev.Attributes), ev.Category.String())
	}
	for i, v := range ev.Attributes {
		if v.Type() != types[i] {
			return Event{}, errors.NewInvalidTypeError(
				fmt.Sprintf("attribute %d is %s, want %s", i, v.Type(), types[i]), ev.Category.String())
		}
	}

	ev.Kind = kind
	if kind != KindTracking {
		ev.Actor = ""
	}
	ev.Attributes = append([]variant.Value(nil), ev.Attributes...)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}

	if m.metrics != nil {
		m.metrics.RecordEvent(kind)
	}
	if m.listener != nil {
		out := ev
		out.Attributes = append([]variant.Value(nil), ev.Attributes...)
		m.listener.EventRaised(out)
	}
	return ev, nil
}

// Acknowledge accepts an operator acknowledgment of a condition. The
// references are validated; acknowledgment bookkeeping itself is left to
// the client session layer, so no state changes here.
func (m *Model) Acknowledge(id ConditionID, sub SubConditionID) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conditions[id]
	if !ok {
		return errors.NewUnknownReferenceError("condition", id.String())
	}
	if sub != NoSubCondition {
		if _, ok := m.definitions[c.def].subCondition(sub); !ok {
			return errors.NewUnknownReferenceError("sub-condition", fmt.Sprintf("%s/%s", c.def, sub))
		}
	}
	return nil
}
