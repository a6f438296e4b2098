// Package server provides the gateway's HTTP server and lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/middleware"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/telemetry/health"
)

// Closer is a named shutdown hook. Closers run after the HTTP listener
// has drained, in registration order.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// BuildInfo identifies the running binary on the version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the gateway's HTTP front end. It owns the listener, the
// route table, and the ordered shutdown of the components behind it.
type Server struct {
	config  config.ServerConfig
	invoke  http.Handler
	health  *health.Checker
	metrics http.Handler
	build   BuildInfo
	closers []Closer

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. invoke handles POST /invoke; metricsHandler may
// be nil to disable the /metrics endpoint.
func New(cfg config.ServerConfig, invoke http.Handler, checker *health.Checker, metricsHandler http.Handler, build BuildInfo) *Server {
	return &Server{
		config:       cfg,
		invoke:       invoke,
		health:       checker,
		metrics:      metricsHandler,
		build:        build,
		shutdownChan: make(chan struct{}),
	}
}

// RegisterCloser adds a shutdown hook. Closers run during Shutdown
// after the listener stops accepting requests, so the audit recorder
// registered here still flushes records for requests that completed
// during the drain.
func (s *Server) RegisterCloser(name string, close func(ctx context.Context) error) {
	s.closers = append(s.closers, Closer{Name: name, Close: close})
}

// Start starts the HTTP server and blocks until the context is
// cancelled, a shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Stop requests a shutdown from another goroutine.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdownChan)
	})
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, for tests that drive
// the route table without a listener.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Shutdown drains the listener, then runs the registered closers in
// order. In-flight requests get ShutdownTimeout to complete; a closer
// failure is logged but does not stop the remaining closers.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		for _, c := range s.closers {
			if err := c.Close(shutdownCtx); err != nil {
				slog.Error("component shutdown failed", "component", c.Name, "error", err)
				if shutdownErr == nil {
					shutdownErr = fmt.Errorf("%s shutdown error: %w", c.Name, err)
				}
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// routes builds the route table and middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /invoke", s.invoke)
	mux.HandleFunc("GET /healthz", s.health.LivenessHandler())
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler())
	mux.HandleFunc("GET /version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	var handler http.Handler = mux
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}
