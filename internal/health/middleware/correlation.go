// Package middleware provides HTTP middleware components for the health
// and readiness surface.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// correlationHeader is the header name a caller can set to propagate its own
// correlation ID through to this service's logs and RFC 7807 responses.
const correlationHeader = "X-Correlation-ID"

// correlationIDKey is the context key for correlation ID.
type correlationIDKey struct{}

// CorrelationID creates a middleware that adds a correlation ID to each
// request. If the request already carries an X-Correlation-ID header (set by
// an upstream caller), that value is reused so the caller's requests and
// this service's logs can be traced end to end. Otherwise a new one is minted from the same
// uuid package the orchestrator uses for run IDs, keeping every identifier
// in the pipeline in one format.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(correlationHeader)

			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			w.Header().Set(correlationHeader, correlationID)

			ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCorrelationID extracts the correlation ID from the request context.
// Called outside a request driven through CorrelationID (a handler invoked
// directly in a test, say) it returns "unknown" rather than panicking.
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return correlationID
	}

	return "unknown"
}
