package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/api/auth"
	"github.com/marmos91/daserver/pkg/api/handlers"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/notify"
	"github.com/marmos91/daserver/pkg/population"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

type shutdownRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (s *shutdownRecorder) record(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, reason)
}

func (s *shutdownRecorder) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reasons...)
}

type fixture struct {
	core     *lifecycle.ServerCore
	handler  http.Handler
	jwt      *auth.JWTService
	recent   *notify.RecentSink
	shutdown *shutdownRecorder
}

func newFixture(t *testing.T, withAuth, populate bool) *fixture {
	t.Helper()
	rec := &shutdownRecorder{}
	core := lifecycle.NewCore(items.NewStore(), alarms.NewModel(),
		lifecycle.WithHost(lifecycle.HostFuncs{OnShutdown: rec.record}))

	if populate {
		ctrl := lifecycle.NewController(core, population.Sample(population.Config{}), nil, lifecycle.Config{})
		require.NoError(t, ctrl.Start(context.Background()))
		state, err := ctrl.WaitSettled(context.Background())
		require.NoError(t, err)
		require.Equal(t, lifecycle.StateRunning, state)
		t.Cleanup(func() { ctrl.Stop() })
	}

	cfg := APIConfig{}
	if withAuth {
		cfg.JWT.Secret = testSecret
	}
	t.Setenv(EnvJWTSecret, "")
	recent := notify.NewRecentSink(16)
	srv, err := NewServer(cfg, core, recent)
	require.NoError(t, err)

	return &fixture{core: core, handler: srv.Handler(), jwt: srv.jwtService, recent: recent, shutdown: rec}
}

func (f *fixture) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) token(t *testing.T, role string) string {
	t.Helper()
	pair, err := f.jwt.GenerateTokenPair("tester", role)
	require.NoError(t, err)
	return pair.AccessToken
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestNewServerRejectsShortSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	_, err := NewServer(APIConfig{JWT: JWTConfig{Secret: "short"}}, nil, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false, false)

	rr := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "no_config")
}

func TestReadyWhenRunning(t *testing.T) {
	f := newFixture(t, false, true)

	rr := f.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[map[string]any](t, rr)
	assert.Equal(t, "running", status["state"])
	assert.EqualValues(t, f.core.Items().Count(), status["items"])
	assert.EqualValues(t, 5, status["conditions"])
	assert.Equal(t, true, status["sealed"])
}

func TestItemReads(t *testing.T) {
	f := newFixture(t, false, true)

	rr := f.do(t, http.MethodGet, "/api/v1/items?prefix=SimulatedData.", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 4)

	rr = f.do(t, http.MethodGet, "/api/v1/items?limit=3", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 3)

	rr = f.do(t, http.MethodGet, "/api/v1/items/CTT.SimpleTypes.In.Word", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "CTT.SimpleTypes.In.Word", body["path"])
	assert.Equal(t, "good", body["quality"])

	rr = f.do(t, http.MethodGet, "/api/v1/items/CTT.Arrays.InOut.String%5B%5D", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/items/CTT.SimpleTypes.Out.Word", "", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, handlers.ContentTypeProblemJSON, rr.Header().Get("Content-Type"))

	rr = f.do(t, http.MethodGet, "/api/v1/items/No.Such.Item", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	problem := decode[handlers.Problem](t, rr)
	assert.Equal(t, "UnknownReference", problem.Code)
}

func TestItemWrites(t *testing.T) {
	f := newFixture(t, true, true)
	operator := f.token(t, auth.RoleOperator)

	tests := []struct {
		name  string
		path  string
		body  string
		token string
		want  int
	}{
		{"no token", "CTT.SimpleTypes.InOut.Word", `{"value": 7}`, "", http.StatusUnauthorized},
		{"viewer", "CTT.SimpleTypes.InOut.Word", `{"value": 7}`, f.token(t, auth.RoleViewer), http.StatusForbidden},
		{"operator", "CTT.SimpleTypes.InOut.Word", `{"value": 7}`, operator, http.StatusOK},
		{"out of range", "CTT.SimpleTypes.InOut.Word", `{"value": 70000}`, operator, http.StatusUnprocessableEntity},
		{"read only", "CTT.SimpleTypes.In.Word", `{"value": 7}`, operator, http.StatusForbidden},
		{"missing value", "CTT.SimpleTypes.InOut.Word", `{}`, operator, http.StatusBadRequest},
		{"unknown item", "Nope", `{"value": 1}`, operator, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPut, "/api/v1/items/"+tt.path, tt.body, tt.token)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	h, err := f.core.Items().Lookup("CTT.SimpleTypes.InOut.Word")
	require.NoError(t, err)
	sample, err := f.core.Items().GetValue(h)
	require.NoError(t, err)
	n, _ := sample.Value.Int()
	assert.Equal(t, int64(7), n)
}

func TestControlItemWriteRequestsShutdown(t *testing.T) {
	f := newFixture(t, false, true)

	rr := f.do(t, http.MethodPut, "/api/v1/items/"+population.ItemRequestShutdown, `{"value": "maintenance"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"maintenance"}, f.shutdown.all())
}

func TestConditions(t *testing.T) {
	f := newFixture(t, true, true)

	rr := f.do(t, http.MethodGet, "/api/v1/areas", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	areas := decode[[]map[string]any](t, rr)
	require.Len(t, areas, 4)
	assert.NotEmpty(t, areas[0]["path"])

	rr = f.do(t, http.MethodGet, "/api/v1/areas/0x600/children", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	children := decode[[]map[string]any](t, rr)
	require.Len(t, children, 1)
	assert.EqualValues(t, population.AreaNorthDevice1, children[0]["id"])

	rr = f.do(t, http.MethodGet, "/api/v1/areas/0x699/children", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/areas/0x601/sources", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[[]map[string]any](t, rr))

	rr = f.do(t, http.MethodGet, "/api/v1/conditions", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 5)

	rr = f.do(t, http.MethodGet, "/api/v1/conditions?active=true", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]map[string]any](t, rr))

	rr = f.do(t, http.MethodGet, "/api/v1/conditions/0x800", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, population.CondTank1Overflow, decode[map[string]any](t, rr)["id"])

	rr = f.do(t, http.MethodGet, "/api/v1/conditions/banana", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	operator := f.token(t, auth.RoleOperator)
	rr = f.do(t, http.MethodPost, "/api/v1/conditions/0x804/ack", `{"sub_condition": 1362}`, operator)
	assert.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/api/v1/conditions/0x999/ack", "", operator)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/conditions/0x800/ack", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRecentEvents(t *testing.T) {
	f := newFixture(t, false, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.recent.Deliver(context.Background(), notify.Notification{
			Kind:  notify.KindEvent,
			At:    time.Now(),
			Event: &alarms.Event{Message: "No response"},
		}))
	}

	rr := f.do(t, http.MethodGet, "/api/v1/events/recent?limit=2", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 2)

	rr = f.do(t, http.MethodGet, "/api/v1/events/recent?limit=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTokenRefresh(t *testing.T) {
	f := newFixture(t, true, false)
	pair, err := f.jwt.GenerateTokenPair("tester", auth.RoleViewer)
	require.NoError(t, err)

	rr := f.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token": "`+pair.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[auth.TokenPair](t, rr).AccessToken)

	rr = f.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token": "`+pair.AccessToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
