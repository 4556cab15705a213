package items

import (
	"fmt"
	"time"

	"github.com/marmos91/daserver/pkg/variant"
)

// Handle identifies an item for its lifetime. The high 32 bits hold the slot
// generation and the low 32 bits the slot index, so a handle kept after
// Remove never resolves to an item added later in the same slot.
type Handle uint64

// InvalidHandle is never issued.
const InvalidHandle Handle = 0

func makeHandle(gen, index uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string { return fmt.Sprintf("0x%016x", uint64(h)) }

// Quality qualifies a cached value.
type Quality uint8

const (
	QualityGood Quality = iota
	QualityLimited
	QualityBad
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityLimited:
		return "limited"
	case QualityBad:
		return "bad"
	default:
		return fmt.Sprintf("quality(%d)", uint8(q))
	}
}

func (q Quality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *Quality) UnmarshalText(b []byte) error {
	switch string(b) {
	case "good":
		*q = QualityGood
	case "limited":
		*q = QualityLimited
	case "bad":
		*q = QualityBad
	default:
		return fmt.Errorf("unknown quality %q", b)
	}
	return nil
}

// AccessMode says whether clients may read, write or both.
type AccessMode uint8

const (
	ReadOnly AccessMode = 1 << iota
	WriteOnly

	ReadWrite = ReadOnly | WriteOnly
)

func (a AccessMode) Readable() bool { return a&ReadOnly != 0 }
func (a AccessMode) Writable() bool { return a&WriteOnly != 0 }

func (a AccessMode) String() string {
	switch a {
	case ReadOnly:
		return "read"
	case WriteOnly:
		return "write"
	case ReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("access(%d)", uint8(a))
	}
}

func (a AccessMode) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Sample is the (value, quality, timestamp) triple. It is replaced as a
// whole; readers never see fields from two different writes.
type Sample struct {
	Value     variant.Value `json:"value"`
	Quality   Quality       `json:"quality"`
	Timestamp time.Time     `json:"timestamp"`
}

// EURange is the engineering-unit range of an analog item.
type EURange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Info describes an item without its current value.
type Info struct {
	Handle Handle       `json:"handle"`
	Path   string       `json:"path"`
	Type   variant.Type `json:"type"`
	// Length is the fixed array length, or -1 for scalars.
	Length int        `json:"length"`
	Access AccessMode `json:"access"`
	EU     *EURange   `json:"eu,omitempty"`
}

// Change is passed to the Observer after every completed SetValue.
type Change struct {
	Handle Handle
	Path   string
	Sample Sample
}

// Observer receives item changes. Calls for one item are serialized and in
// write order; the store holds that item's write lock during the call, so
// implementations must not block.
type Observer interface {
	ItemChanged(Change)
}

// Metrics is the optional instrumentation hook of the store.
// A nil Metrics disables collection.
type Metrics interface {
	ObserveSetValue(d time.Duration, err error)
	RecordItemCount(n int)
}
