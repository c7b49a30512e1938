// Package middleware provides HTTP middleware components for the health
// and readiness surface.
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

type (
	// RateLimiter provides rate limiting for incoming requests.
	//
	// Implementations may use in-memory token buckets (single-node
	// deployment) or distributed stores for multi-node deployments.
	RateLimiter interface {
		// Allow reports whether a request should proceed.
		Allow() bool
	}

	// InMemoryRateLimiter implements RateLimiter with a single global
	// token bucket from golang.org/x/time/rate. Since this surface serves
	// only the anonymous /health and /ready endpoints (SPEC_FULL.md §6.4),
	// there is no per-caller tier to key on, unlike the teacher's
	// per-plugin limiter.
	InMemoryRateLimiter struct {
		limiter *rate.Limiter
	}
)

// NewInMemoryRateLimiter creates a global rate limiter at the given
// requests-per-second and burst capacity.
func NewInMemoryRateLimiter(requestsPerSecond float64, burst int) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow reports whether the request should proceed under the global limit.
func (rl *InMemoryRateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// RateLimit returns a middleware that enforces the global rate limit,
// responding 429 with an RFC 7807 body when exceeded.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				correlationID := GetCorrelationID(r.Context())
				detail := "Rate limit exceeded. Please retry after some time."

				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write rate limit response",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRFC7807Error writes an RFC 7807 compliant error response without
// importing the health package (would create an import cycle).
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, statusCode int, detail, correlationID string) error {
	problem := map[string]any{
		"type":           fmt.Sprintf("https://emendas-etl.example/problems/%d", statusCode),
		"title":          http.StatusText(statusCode),
		"status":         statusCode,
		"detail":         detail,
		"instance":       r.URL.Path,
		"correlation_id": correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(problem)
}
