package notify

import (
	"context"
	"sync"

	"github.com/marmos91/daserver/internal/logger"
)

// LogSink writes every notification to the debug log. Item changes are
// frequent, so they are only logged when IncludeItems is set.
type LogSink struct {
	IncludeItems bool
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(ctx context.Context, n Notification) error {
	switch n.Kind {
	case KindItemChanged:
		if s.IncludeItems {
			logger.DebugCtx(ctx, "Item changed", logger.KeyItem, n.Item.Path, "value", n.Item.Value.String(), logger.KeyQuality, n.Item.Quality.String())
		}
	case KindConditionChanged:
		c := n.Condition
		logger.DebugCtx(ctx, "Condition changed",
			logger.Condition(uint32(c.ID)),
			logger.KeyActive, c.Active,
			logger.SubCondition(uint32(c.SubCondition)),
			logger.KeySeverity, c.Severity,
			"message", c.Message,
			"changes", c.Changes.String())
	case KindEvent:
		e := n.Event
		logger.DebugCtx(ctx, "Event raised",
			logger.KeyCategory, e.Category.String(),
			logger.Source(uint32(e.Source)),
			logger.KeySeverity, e.Severity,
			"message", e.Message)
	case KindShutdownRequest:
		logger.InfoCtx(ctx, "Shutdown requested by client", logger.KeyItem, n.Shutdown.Item, "reason", n.Shutdown.Reason)
	}
	return nil
}

// RecentSink keeps the last notifications of the selected kinds in a ring.
// It backs the operator API's recent events listing.
type RecentSink struct {
	kinds map[Kind]bool

	mu   sync.RWMutex
	ring []Notification
	next int
	full bool
}

// NewRecentSink keeps up to size notifications. With no kinds it keeps
// condition changes, events and shutdown requests.
func NewRecentSink(size int, kinds ...Kind) *RecentSink {
	if size <= 0 {
		size = 256
	}
	if len(kinds) == 0 {
		kinds = []Kind{KindConditionChanged, KindEvent, KindShutdownRequest}
	}
	k := make(map[Kind]bool, len(kinds))
	for _, kind := range kinds {
		k[kind] = true
	}
	return &RecentSink{kinds: k, ring: make([]Notification, size)}
}

func (r *RecentSink) Name() string { return "recent" }

func (r *RecentSink) Deliver(_ context.Context, n Notification) error {
	if !r.kinds[n.Kind] {
		return nil
	}
	r.mu.Lock()
	r.ring[r.next] = n
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

// Recent returns up to limit notifications, newest first. limit <= 0
// returns everything held.
func (r *RecentSink) Recent(limit int) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.ring)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}
