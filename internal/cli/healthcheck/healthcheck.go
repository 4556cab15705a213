// Package healthcheck queries the health and status endpoints of a running
// server for the status command.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Health is the body of /health and /health/ready.
type Health struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Error     string         `json:"error,omitempty"`
}

// Status is the body of /api/v1/status.
type Status struct {
	State            string `json:"state"`
	Items            int    `json:"items"`
	Conditions       int    `json:"conditions"`
	ActiveConditions int    `json:"active_conditions"`
	Sealed           bool   `json:"sealed"`
	Uptime           string `json:"uptime"`
}

// Report is what the status command prints.
type Report struct {
	Reachable bool   `json:"reachable" yaml:"reachable"`
	Ready     bool   `json:"ready" yaml:"ready"`
	State     string `json:"state,omitempty" yaml:"state,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Items     int    `json:"items" yaml:"items"`
	Active    int    `json:"active_conditions" yaml:"active_conditions"`
	Message   string `json:"message" yaml:"message"`
}

// Client talks to one server.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Check builds a report. An unreachable server is reported, not returned
// as an error.
func (c *Client) Check(ctx context.Context) Report {
	var live Health
	if _, err := c.get(ctx, "/health", &live); err != nil {
		return Report{Message: fmt.Sprintf("Server is not reachable: %v", err)}
	}

	r := Report{Reachable: true}
	if s, ok := live.Data["started_at"].(string); ok {
		r.StartedAt = s
	}

	var ready Health
	code, err := c.get(ctx, "/health/ready", &ready)
	r.Ready = err == nil && code == http.StatusOK
	if state, ok := ready.Data["state"].(string); ok {
		r.State = state
	}

	var st Status
	if code, err := c.get(ctx, "/api/v1/status", &st); err == nil && code == http.StatusOK {
		r.State = st.State
		r.Items = st.Items
		r.Active = st.ActiveConditions
		r.Uptime = st.Uptime
	}

	switch {
	case r.Ready:
		r.Message = "Server is running"
	case r.State == "failed":
		r.Message = "Server population failed"
	default:
		r.Message = "Server is populating"
	}
	return r
}

// get decodes the JSON body of any response, including 503 from the
// readiness check, and returns the status code.
func (c *Client) get(ctx context.Context, path string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("invalid response from %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// FormatUptime turns a Go duration string such as "72h30m15s" into
// "3d 0h 30m 15s". Unparseable input is returned unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
