// Package api is the operator HTTP API of the server: health checks,
// address space reads and writes, the condition catalog, acknowledgments
// and recent notifications.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/api/auth"
	"github.com/marmos91/daserver/pkg/api/handlers"
	"github.com/marmos91/daserver/pkg/lifecycle"
)

// Server provides an HTTP server for the REST API. It implements
// lifecycle.AuxiliaryServer.
type Server struct {
	server       *http.Server
	jwtService   *auth.JWTService
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server in a stopped state.
//
// When a JWT secret is configured (config or DASERVER_API_JWT_SECRET) the
// operator routes require a bearer token; a secret shorter than 32
// characters is an error.
func NewServer(config APIConfig, core *lifecycle.ServerCore, recent handlers.RecentSource) (*Server, error) {
	config.ApplyDefaults()

	var jwtService *auth.JWTService
	if config.HasJWTSecret() {
		svc, err := NewJWTService(config)
		if err != nil {
			return nil, err
		}
		jwtService = svc
	} else {
		logger.Warn("API JWT secret not set, item writes and acknowledgments are unauthenticated",
			"env_var", EnvJWTSecret)
	}

	router := NewRouter(core, recent, jwtService, config.RequestTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:     server,
		jwtService: jwtService,
		config:     config,
	}, nil
}

// NewJWTService builds the token service from the API config.
func NewJWTService(config APIConfig) (*auth.JWTService, error) {
	config.ApplyDefaults()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:               config.GetJWTSecret(),
		Issuer:               "daserver",
		AccessTokenDuration:  config.JWT.AccessTokenDuration,
		RefreshTokenDuration: config.JWT.RefreshTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	return svc, nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port, "auth", s.jwtService != nil)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"ready", fmt.Sprintf("http://localhost:%d/health/ready", s.config.Port),
			"status", fmt.Sprintf("http://localhost:%d/api/v1/status", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// the cancelled ctx would abort the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
