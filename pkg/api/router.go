package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/internal/telemetry"
	"github.com/marmos91/daserver/pkg/api/auth"
	"github.com/marmos91/daserver/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/daserver/pkg/api/middleware"
	"github.com/marmos91/daserver/pkg/lifecycle"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (200 only when Running)
//   - GET /api/v1/status - Server state and counts
//   - GET /api/v1/items, GET /api/v1/items/{path} - Address space
//   - PUT /api/v1/items/{path} - Item write (operator)
//   - GET /api/v1/areas, GET /api/v1/areas/{id}/{children,sources} - Area tree
//   - GET /api/v1/conditions, GET /api/v1/conditions/{id} - Conditions
//   - POST /api/v1/conditions/{id}/ack - Acknowledgment (operator)
//   - GET /api/v1/events/recent - Recent notifications
//   - POST /api/v1/auth/refresh - Token refresh
//
// jwtService may be nil, in which case the operator routes are open.
func NewRouter(core *lifecycle.ServerCore, recent handlers.RecentSource, jwtService *auth.JWTService, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	healthHandler := handlers.NewHealthHandler(core)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	itemHandler := handlers.NewItemHandler(core, apiMiddleware.Actor)
	conditionHandler := handlers.NewConditionHandler(core, apiMiddleware.Actor)
	eventHandler := handlers.NewEventHandler(recent)

	protect := func(r chi.Router) {
		if jwtService != nil {
			r.Use(apiMiddleware.JWTAuth(jwtService))
			r.Use(apiMiddleware.RequireOperator)
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", healthHandler.Status)

		if jwtService != nil {
			authHandler := handlers.NewAuthHandler(jwtService)
			r.Post("/auth/refresh", authHandler.Refresh)
		}

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Get("/*", itemHandler.Get)
			r.Group(func(r chi.Router) {
				protect(r)
				r.Put("/*", itemHandler.Put)
			})
		})

		r.Route("/areas", func(r chi.Router) {
			r.Get("/", conditionHandler.Areas)
			r.Get("/{id}/children", conditionHandler.Children)
			r.Get("/{id}/sources", conditionHandler.Sources)
		})

		r.Route("/conditions", func(r chi.Router) {
			r.Get("/", conditionHandler.List)
			r.Get("/{id}", conditionHandler.Get)
			r.Group(func(r chi.Router) {
				protect(r)
				r.Post("/{id}/ack", conditionHandler.Acknowledge)
			})
		})

		r.Get("/events/recent", eventHandler.Recent)
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger wraps each request in a server span and logs it with the
// span's trace ids. Health checks are logged at DEBUG to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanAPIRequest,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(telemetry.HTTPRequest(r.Method, r.URL.Path)...))
		defer span.End()

		lc := logger.NewLogContext(r.RemoteAddr)
		lc.RequestID = middleware.GetReqID(ctx)
		if sc := span.SpanContext(); sc.IsValid() {
			lc = lc.WithTrace(sc.TraceID().String(), sc.SpanID().String())
		}
		ctx = logger.WithContext(ctx, lc)

		logger.DebugCtx(ctx, "API request started", "method", r.Method, "path", r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(telemetry.HTTPStatus(ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			telemetry.SetStatus(ctx, codes.Error, http.StatusText(ww.Status()))
		}

		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", lc.DurationMs(),
		}
		if isHealthPath(r.URL.Path) {
			logger.DebugCtx(ctx, "API request completed", logArgs...)
		} else {
			logger.InfoCtx(ctx, "API request completed", logArgs...)
		}
	})
}
