// Package middleware provides HTTP middleware components for the health
// and readiness surface.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger creates a middleware that logs HTTP requests with structured
// logging. A single completed-request line is emitted (not a started/finished
// pair): this surface is /health and /ready, polled on a short interval by
// whatever orchestrates the process, so a per-request start line would mostly
// add noise. Non-2xx responses are logged at Warn so they stand out from
// routine liveness/readiness polling without raising the log level globally.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := GetCorrelationID(r.Context())

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			fields := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status_code", rw.statusCode),
				slog.Duration("duration", duration),
				slog.String("correlation_id", correlationID),
			}

			if rw.statusCode >= http.StatusBadRequest {
				logger.Warn("health request completed", fields...)
			} else {
				logger.Info("health request completed", fields...)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter

	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
