// Package api provides the auxiliary HTTP server exposing health, status,
// and metrics endpoints for the listener host.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/firstsee/servicehost/internal/logger"
)

// Server provides the auxiliary HTTP server.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /status: Listener host status
//   - GET /metrics: Prometheus metrics (when metrics are enabled)
//
// The server supports graceful shutdown with configurable timeout and
// satisfies runtime.AuxiliaryServer.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new auxiliary HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests. status may not be nil.
func NewServer(config Config, status HostStatus) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      NewRouter(status),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}
}

// Start starts the auxiliary HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("auxiliary server listening", logger.Port(s.config.Port))

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("auxiliary server shutdown signal received")
		// Don't use the cancelled ctx for shutdown as it would abort immediately
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("auxiliary server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the auxiliary server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("auxiliary server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("auxiliary server shutdown error: %w", err)
			logger.Error("auxiliary server shutdown error", logger.Err(err))
		} else {
			logger.Info("auxiliary server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
