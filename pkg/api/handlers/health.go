package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/daserver/pkg/lifecycle"
)

// HealthHandler handles the unauthenticated health checks and the status summary.
type HealthHandler struct {
	core      *lifecycle.ServerCore
	startTime time.Time
}

// NewHealthHandler creates a new health handler. core may be nil, in which
// case readiness always fails.
func NewHealthHandler(core *lifecycle.ServerCore) *HealthHandler {
	return &HealthHandler{
		core:      core,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server
// answers, whatever the server state.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "daserver",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready: 200 only once population finished
// and the server is Running.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.core == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(map[string]string{
			"state": lifecycle.StateNoConfig.String(),
		}))
		return
	}

	state := h.core.State()
	data := map[string]interface{}{
		"state": state.String(),
		"items": h.core.Items().Count(),
	}
	if state != lifecycle.StateRunning {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(data))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(data))
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	lifecycle.Status
	Uptime string `json:"uptime"`
}

// Status handles GET /api/v1/status.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.core == nil {
		ServiceUnavailable(w, "server core not initialized")
		return
	}
	WriteJSONOK(w, StatusResponse{
		Status: h.core.Status(),
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}
