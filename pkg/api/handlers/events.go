package handlers

import (
	"net/http"

	"github.com/marmos91/daserver/pkg/notify"
)

// RecentSource returns the most recent notifications, newest first.
type RecentSource interface {
	Recent(limit int) []notify.Notification
}

// EventHandler serves recently delivered condition changes, events and
// shutdown requests.
type EventHandler struct {
	recent RecentSource
}

func NewEventHandler(recent RecentSource) *EventHandler {
	return &EventHandler{recent: recent}
}

// Recent handles GET /api/v1/events/recent?limit=.
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 100)
	if !ok {
		BadRequest(w, "limit must be a non-negative integer")
		return
	}
	if h.recent == nil {
		WriteJSONOK(w, []notify.Notification{})
		return
	}
	WriteJSONOK(w, h.recent.Recent(limit))
}
