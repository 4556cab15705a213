package alarms

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/variant"
)

type (
	CategoryID     uint32
	AttributeID    uint32
	DefinitionID   uint32
	SubConditionID uint32
	AreaID         uint32
	SourceID       uint32
	ConditionID    uint32
)

const (
	// RootArea is the implicit top of the area tree.
	RootArea AreaID = 0xFFFFFFFE
	// UnspecifiedArea is reserved and never names a real area.
	UnspecifiedArea AreaID = 0xFFFFFFFD

	// NoSubCondition marks an inactive multi-state condition or a
	// single-state condition.
	NoSubCondition SubConditionID = 0
)

// EventKind classifies a category.
type EventKind uint8

const (
	KindSimple EventKind = iota + 1
	KindTracking
	KindCondition
)

func (k EventKind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindTracking:
		return "tracking"
	case KindCondition:
		return "condition"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Attribute is one vendor attribute carried by events of a category.
type Attribute struct {
	ID   AttributeID  `json:"id"`
	Name string       `json:"name"`
	Type variant.Type `json:"type"`
}

// Category groups events of one kind. Attribute order is the order of the
// attribute vector on every condition and event of the category.
type Category struct {
	ID         CategoryID  `json:"id"`
	Name       string      `json:"name"`
	Kind       EventKind   `json:"kind"`
	Attributes []Attribute `json:"attributes"`
}

// DefinitionKind distinguishes single-state from multi-state definitions.
type DefinitionKind uint8

const (
	SingleState DefinitionKind = iota + 1
	MultiState
)

func (k DefinitionKind) String() string {
	if k == MultiState {
		return "multi-state"
	}
	return "single-state"
}

func (k DefinitionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// SubCondition is one ordered state of a multi-state definition.
type SubCondition struct {
	ID          SubConditionID `json:"id"`
	Name        string         `json:"name"`
	Expression  string         `json:"expression"`
	Severity    uint32         `json:"severity"`
	Message     string         `json:"message"`
	AckRequired bool           `json:"ack_required"`
}

// Definition is a condition template. Single-state definitions carry their
// own expression, severity, message and ack flag; multi-state definitions
// take those from the active sub-condition.
type Definition struct {
	ID            DefinitionID   `json:"id"`
	Category      CategoryID     `json:"category"`
	Name          string         `json:"name"`
	Kind          DefinitionKind `json:"kind"`
	Expression    string         `json:"expression,omitempty"`
	Severity      uint32         `json:"severity"`
	Message       string         `json:"message,omitempty"`
	AckRequired   bool           `json:"ack_required"`
	SubConditions []SubCondition `json:"sub_conditions,omitempty"`
}

func (d *Definition) subCondition(id SubConditionID) (SubCondition, bool) {
	for _, sc := range d.SubConditions {
		if sc.ID == id {
			return sc, true
		}
	}
	return SubCondition{}, false
}

// Area is a node of the plant hierarchy.
type Area struct {
	ID       AreaID     `json:"id"`
	Parent   AreaID     `json:"parent"`
	Name     string     `json:"name"`
	Children []AreaID   `json:"children,omitempty"`
	Sources  []SourceID `json:"sources,omitempty"`
}

// Source is an event emitter attached to one or more areas. Only sources
// declared Shared may be attached to more than one.
type Source struct {
	ID     SourceID `json:"id"`
	Name   string   `json:"name"`
	Shared bool     `json:"shared"`
	Areas  []AreaID `json:"areas"`
}

// ChangeMask lists the fields that differ from the previous condition state.
type ChangeMask uint16

const (
	ChangeActive ChangeMask = 1 << iota
	ChangeSubCondition
	ChangeSeverity
	ChangeMessage
	ChangeQuality
	ChangeAttributes
	ChangeAckRequired
)

var changeNames = []string{"active", "sub_condition", "severity", "message", "quality", "attributes", "ack_required"}

func (m ChangeMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for i, n := range changeNames {
		if m&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

func (m ChangeMask) Has(c ChangeMask) bool { return m&c == c }

// ConditionState is the full snapshot of a live condition, as published with
// every transition.
type ConditionState struct {
	ID           ConditionID     `json:"id"`
	Source       SourceID        `json:"source"`
	Definition   DefinitionID    `json:"definition"`
	Category     CategoryID      `json:"category"`
	Active       bool            `json:"active"`
	SubCondition SubConditionID  `json:"sub_condition"`
	Severity     uint32          `json:"severity"`
	Quality      items.Quality   `json:"quality"`
	AckRequired  bool            `json:"ack_required"`
	Message      string          `json:"message"`
	Attributes   []variant.Value `json:"attributes"`
	Timestamp    time.Time       `json:"timestamp"`
	// Sequence counts transitions of this condition, starting at 1.
	Sequence uint64     `json:"sequence"`
	Changes  ChangeMask `json:"changes"`
}

func (s ConditionState) clone() ConditionState {
	s.Attributes = append([]variant.Value(nil), s.Attributes...)
	return s
}

// Transition is the requested new state of a condition. Message and
// AckRequired, when set, override the defaults for this transition only.
type Transition struct {
	Active       bool
	SubCondition SubConditionID
	Quality      items.Quality
	Message      *string
	AckRequired  *bool
	Attributes   []variant.Value
	// Timestamp defaults to the current time.
	Timestamp time.Time
}

// Event is a simple or tracking event. Events are fire-and-forget.
type Event struct {
	Kind       EventKind       `json:"kind"`
	Category   CategoryID      `json:"category"`
	Source     SourceID        `json:"source"`
	Message    string          `json:"message"`
	Severity   uint32          `json:"severity"`
	Actor      string          `json:"actor,omitempty"`
	Attributes []variant.Value `json:"attributes"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Listener receives outbound condition and event notifications. Calls for
// one condition arrive in transition order while the condition is locked, so
// implementations must not block or call back into the model.
type Listener interface {
	ConditionChanged(ConditionState)
	EventRaised(Event)
}

// Metrics is the optional instrumentation hook of the model.
type Metrics interface {
	RecordTransition(definition string, active bool)
	RecordEvent(kind EventKind)
	RecordRejected(operation string, err error)
}

func (id CategoryID) String() string     { return fmt.Sprintf("0x%x", uint32(id)) }
func (id DefinitionID) String() string   { return fmt.Sprintf("0x%x", uint32(id)) }
func (id SubConditionID) String() string { return fmt.Sprintf("0x%x", uint32(id)) }
func (id AreaID) String() string         { return fmt.Sprintf("0x%x", uint32(id)) }
func (id SourceID) String() string       { return fmt.Sprintf("0x%x", uint32(id)) }
func (id ConditionID) String() string    { return fmt.Sprintf("0x%x", uint32(id)) }
func (id AttributeID) String() string    { return fmt.Sprintf("0x%x", uint32(id)) }
