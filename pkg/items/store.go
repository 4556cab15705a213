// Package items implements the item store: the live cache of named data
// points that the refresh engine writes and client sessions read.
package items

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/variant"
)

type item struct {
	path   string
	typ    variant.Type
	length int
	access AccessMode
	eu     *EURange

	// wmu orders writers and observer calls; readers only load sample.
	wmu     sync.Mutex
	removed bool
	sample  atomic.Pointer[Sample]
}

type slot struct {
	gen  uint32
	item *item
}

// Store is the item store. The zero value is not usable; call NewStore.
//
// The handle table (slots, free list, path index) is guarded by mu. Values
// live behind a per-item atomic pointer, so GetValue never waits on SetValue.
type Store struct {
	mu     sync.RWMutex
	slots  []slot
	free   []uint32
	byPath map[string]uint32

	maxItems int
	maxSlots uint64
	observer Observer
	metrics  Metrics
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxItems bounds the number of live items. Zero means unbounded.
func WithMaxItems(n int) Option { return func(s *Store) { s.maxItems = n } }

// WithObserver installs the change observer.
func WithObserver(o Observer) Option { return func(s *Store) { s.observer = o } }

func WithMetrics(m Metrics) Option { return func(s *Store) { s.metrics = m } }

// WithClock replaces time.Now for defaulted timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func NewStore(opts ...Option) *Store {
	s := &Store{
		byPath:   make(map[string]uint32),
		maxSlots: math.MaxUint32,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddOption configures a single item at creation.
type AddOption func(*item)

// WithEURange records the engineering-unit range of an analog item.
func WithEURange(low, high float64) AddOption {
	return func(it *item) { it.eu = &EURange{Low: low, High: high} }
}

// Add registers a new item with its initial value, stored with quality Good
// and the current time. The item's canonical type (and array length) is
// fixed by initial.
func (s *Store) Add(path string, access AccessMode, initial variant.Value, opts ...AddOption) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return InvalidHandle, errors.NewInvalidArgumentError("item path must not be empty")
	}
	if access&ReadWrite == 0 || access&^ReadWrite != 0 {
		return InvalidHandle, errors.NewInvalidArgumentError("invalid access mode " + access.String())
	}
	if !initial.Type().Valid() {
		return InvalidHandle, errors.NewInvalidTypeError("unsupported data type "+initial.Type().String(), path)
	}

	it := &item{
		path:   path,
		typ:    initial.Type(),
		length: initial.Len(),
		access: access,
	}
	for _, opt := range opts {
		opt(it)
	}
	it.sample.Store(&Sample{Value: initial, Quality: QualityGood, Timestamp: s.now()})

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPath[path]; exists {
		return InvalidHandle, errors.NewDuplicateKeyError("item", path)
	}
	if s.maxItems > 0 && len(s.byPath) >= s.maxItems {
		return InvalidHandle, errors.NewResourceExhaustedError(fmt.Sprintf("item limit of %d reached", s.maxItems))
	}

	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		if uint64(len(s.slots)) >= s.maxSlots {
			return InvalidHandle, errors.NewResourceExhaustedError("item handle table is full")
		}
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot{gen: 1})
	}

	s.slots[idx].item = it
	s.byPath[path] = idx
	s.recordCount()

	return makeHandle(s.slots[idx].gen, idx), nil
}

// Remove deletes the item. Unknown or already removed handles are ignored.
func (s *Store) Remove(h Handle) error {
	s.mu.Lock()
	it := s.resolveLocked(h)
	if it == nil {
		s.mu.Unlock()
		return nil
	}

	idx := h.index()
	delete(s.byPath, it.path)
	s.slots[idx].item = nil
	s.slots[idx].gen++
	// a wrapped generation could alias a stale handle; retire the slot instead
	if s.slots[idx].gen != 0 {
		s.free = append(s.free, idx)
	}
	s.recordCount()
	s.mu.Unlock()

	it.wmu.Lock()
	it.removed = true
	it.wmu.Unlock()
	return nil
}

// SetValue replaces the item's sample. A zero timestamp is replaced by the
// current time. The value must have the item's canonical type and, for
// arrays, its fixed length.
func (s *Store) SetValue(h Handle, value variant.Value, quality Quality, ts time.Time) (err error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.ObserveSetValue(time.Since(start), err) }()
	}

	it := s.resolve(h)
	if it == nil {
		return errors.NewUnknownHandleError(h.String())
	}
	if !value.Conforms(it.typ, it.length) {
		return errors.NewInvalidTypeError(
			fmt.Sprintf("value of type %s (len %d) does not match %s (len %d)", value.Type(), value.Len(), it.typ, it.length),
			it.path)
	}
	if ts.IsZero() {
		ts = s.now()
	}

	smp := &Sample{Value: value, Quality: quality, Timestamp: ts}

	it.wmu.Lock()
	defer it.wmu.Unlock()
	if it.removed {
		return errors.NewUnknownHandleError(h.String())
	}
	it.sample.Store(smp)
	if s.observer != nil {
		s.observer.ItemChanged(Change{Handle: h, Path: it.path, Sample: *smp})
	}
	return nil
}

// GetValue returns the sample of the most recently completed SetValue.
func (s *Store) GetValue(h Handle) (Sample, error) {
	it := s.resolve(h)
	if it == nil {
		return Sample{}, errors.NewUnknownHandleError(h.String())
	}
	return *it.sample.Load(), nil
}

// Lookup resolves a path to its handle.
func (s *Store) Lookup(path string) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byPath[path]
	if !ok {
		return InvalidHandle, errors.NewUnknownReferenceError("item", path)
	}
	return makeHandle(s.slots[idx].gen, idx), nil
}

// Info describes a live item.
func (s *Store) Info(h Handle) (Info, error) {
	it := s.resolve(h)
	if it == nil {
		return Info{}, errors.NewUnknownHandleError(h.String())
	}
	return it.info(h), nil
}

// List returns the items whose path starts with prefix, sorted by path.
func (s *Store) List(prefix string) []Info {
	s.mu.RLock()
	out := make([]Info, 0, len(s.byPath))
	for path, idx := range s.byPath {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		sl := s.slots[idx]
		out = append(out, sl.item.info(makeHandle(sl.gen, idx)))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Count returns the number of live items.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPath)
}

func (s *Store) resolve(h Handle) *item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(h)
}

func (s *Store) resolveLocked(h Handle) *item {
	idx := h.index()
	if h == InvalidHandle || uint64(idx) >= uint64(len(s.slots)) {
		return nil
	}
	sl := s.slots[idx]
	if sl.gen != h.generation() {
		return nil
	}
	return sl.item
}

// recordCount must be called with mu held.
func (s *Store) recordCount() {
	if s.metrics != nil {
		s.metrics.RecordItemCount(len(s.byPath))
	}
}

func (it *item) info(h Handle) Info {
	inf := Info{
		Handle: h,
		Path:   it.path,
		Type:   it.typ,
		Length: it.length,
		Access: it.access,
	}
	if it.eu != nil {
		eu := *it.eu
		inf.EU = &eu
	}
	return inf
}
