// Package notify fans the outbound notifications of the item store and the
// condition model out to sinks (log, in-memory ring, NATS) from a single
// background worker, so producers never block on delivery.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
)

// Kind identifies the payload of a Notification.
type Kind uint8

const (
	KindItemChanged Kind = iota + 1
	KindConditionChanged
	KindEvent
	KindShutdownRequest
)

func (k Kind) String() string {
	switch k {
	case KindItemChanged:
		return "item_changed"
	case KindConditionChanged:
		return "condition_changed"
	case KindEvent:
		return "event"
	case KindShutdownRequest:
		return "shutdown_request"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ShutdownRequest is raised when a client writes the shutdown control item.
type ShutdownRequest struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// ItemChange is the wire form of items.Change.
type ItemChange struct {
	Handle items.Handle `json:"handle"`
	Path   string       `json:"path"`
	items.Sample
}

// Notification is one outbound message. Exactly one payload field is set,
// matching Kind.
type Notification struct {
	ID   uuid.UUID `json:"id"`
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	Item      *ItemChange            `json:"item,omitempty"`
	Condition *alarms.ConditionState `json:"condition,omitempty"`
	Event     *alarms.Event          `json:"event,omitempty"`
	Shutdown  *ShutdownRequest       `json:"shutdown,omitempty"`
}
