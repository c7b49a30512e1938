package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/snak3gh0st/emendas-etl/internal/config"
	"github.com/snak3gh0st/emendas-etl/internal/health/middleware"
)

// Server serves the anonymous health/readiness surface described in
// SPEC_FULL §6.4, wired through the same correlation-ID, recovery,
// rate-limiting, request-logging, and CORS middleware chain the teacher's
// API server used.
type Server struct {
	db     RunReader
	logger *slog.Logger
	http   *http.Server
}

// defaultCORS allows any origin to read the health surface; it carries no
// sensitive data, so there is nothing to restrict.
type defaultCORS struct{}

func (defaultCORS) GetAllowedOrigins() []string { return []string{"*"} }
func (defaultCORS) GetAllowedMethods() []string { return []string{http.MethodGet, http.MethodOptions} }
func (defaultCORS) GetAllowedHeaders() []string { return []string{"Content-Type"} }
func (defaultCORS) GetMaxAge() int               { return 600 }

// NewServer builds the health HTTP server. db supplies the latest run for
// GET /health; it is typically the same *storage.Connection the
// Orchestrator writes through.
func NewServer(httpCfg config.HTTPConfig, db RunReader, logger *slog.Logger) *Server {
	s := &Server{db: db, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	limiter := middleware.NewInMemoryRateLimiter(httpCfg.RateLimitPerSec, httpCfg.RateLimitBurst)

	chained := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(limiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(defaultCORS{}),
	)

	s.http = &http.Server{
		Addr:         httpCfg.Address,
		Handler:      chained,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
	}

	return s
}

// Start runs the server until it errors or is shut down. It blocks;
// callers run it in its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("health server listening", slog.String("address", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
