// Package server exposes the management console over HTTP: endpoint
// health, activity, optimization runs, Prometheus metrics, and a live
// SSE event feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/console"
)

// Server is the console HTTP server.
type Server struct {
	cfg         config.ServerConfig
	console     *console.Console
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	running      bool
}

// New creates the server. metricsHandler may be nil to disable the
// metrics route.
func New(cfg config.ServerConfig, con *console.Console, metricsPath string, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		cfg:         cfg,
		console:     con,
		metrics:     metricsHandler,
		metricsPath: metricsPath,
		logger:      logger,
	}
}

// Start runs the server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("console server listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down console server")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.running = false
		srv := s.httpServer
		s.mu.Unlock()

		shutdownCtx := ctx
		if s.cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
		}

		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		s.logger.Info("console server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler builds the route table and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// The Go 1.21 ServeMux has no method patterns; handle registers the
	// path and enforces the method the way the 1.22+ mux would (405 with
	// an Allow header on mismatch, HEAD allowed where GET is).
	handle := func(method, pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
				w.Header().Set("Allow", method)
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})
	}

	handle(http.MethodGet, "/health", s.handleHealth)
	if s.metrics != nil {
		handle(http.MethodGet, s.metricsPath, s.metrics.ServeHTTP)
	}

	handle(http.MethodGet, "/api/endpoints", s.handleEndpoints)
	handle(http.MethodGet, "/api/checks", s.handleChecks)
	handle(http.MethodGet, "/api/monitor", s.handleMonitor)
	handle(http.MethodGet, "/api/requests", s.handleRecent)
	handle(http.MethodPost, "/api/optimize", s.handleOptimize)
	handle(http.MethodPost, "/api/monitor/reset", s.handleReset)
	handle(http.MethodGet, "/api/events", s.handleEvents)

	var handler http.Handler = mux
	handler = CORSMiddleware(s.cfg.CORS)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}
