// Package server provides the toolgate admin HTTP server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/storage"
	"mercator-hq/toolgate/pkg/security/auth"
	"mercator-hq/toolgate/pkg/server/middleware"
	"mercator-hq/toolgate/pkg/telemetry/health"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

const healthCheckTimeout = 2 * time.Second

// Options wires the server to the limiter and its collaborators.
type Options struct {
	// Manager is the limiter. Required.
	Manager *limits.Manager

	// Journal serves /v1/violations. Optional.
	Journal storage.Backend

	// Gatherer serves the metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer

	// MetricsPath defaults to "/metrics".
	MetricsPath string

	// SessionMaxAge is the cleanup max age when the request names none.
	SessionMaxAge time.Duration

	// Tracer records a span per request. Optional.
	Tracer *tracing.Tracer

	// TLS serves HTTPS when set.
	TLS *tls.Config

	// Auth requires an API key on every non-exempt route. Optional.
	Auth *auth.APIKeyMiddleware

	// Version is reported by /version.
	Version string

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the admin HTTP server.
type Server struct {
	config     *config.ServerConfig
	opts       Options
	logger     *slog.Logger
	health     *health.Checker
	httpServer *http.Server

	mu           sync.RWMutex
	isRunning    bool
	listener     net.Listener
	shutdownOnce sync.Once
}

// New creates a server. It does not listen until Start.
func New(cfg *config.ServerConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	if opts.SessionMaxAge == 0 {
		opts.SessionMaxAge = config.DefaultSessionMaxAge
	}

	checker := health.New(healthCheckTimeout)
	if opts.Journal != nil {
		journal := opts.Journal
		checker.RegisterCheck("journal", func(ctx context.Context) error {
			_, err := journal.Count(ctx, storage.Filter{Limit: 1})
			return err
		})
	}

	return &Server{
		config: cfg,
		opts:   opts,
		logger: opts.Logger.With("component", "server"),
		health: checker,
	}
}

// Health returns the checker behind /health. Register further component
// checks on it before Start.
func (s *Server) Health() *health.Checker {
	return s.health
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	if s.opts.TLS != nil {
		ln = tls.NewListener(ln, s.opts.TLS)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.listener = ln
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", ln.Addr().String(), "tls", s.opts.TLS != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/check", s.handleCheck)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /v1/sessions/cleanup", s.handleCleanup)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/violations", s.handleViolations)
	mux.HandleFunc("GET /v1/violations/export", s.handleExportViolations)
	mux.HandleFunc("GET /health", s.health.ReadinessHandler())
	mux.HandleFunc("GET /health/live", s.health.LivenessHandler())
	mux.HandleFunc("GET /version", s.handleVersion)

	if s.opts.Gatherer != nil {
		mux.Handle("GET "+s.opts.MetricsPath, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		}))
	}

	var handler http.Handler = mux
	if s.opts.Auth != nil {
		handler = s.opts.Auth.Handle(handler)
	}
	handler = middleware.LoggingMiddleware(s.opts.Logger)(handler)
	handler = middleware.TracingMiddleware(s.opts.Tracer)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
