package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInMemoryRateLimiter_AllowsWithinBurst(t *testing.T) {
	limiter := NewInMemoryRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "request %d should be allowed within burst", i)
	}

	assert.False(t, limiter.Allow(), "request beyond burst should be rejected")
}

func TestRateLimit_PassesThroughWhenAllowed(t *testing.T) {
	limiter := NewInMemoryRateLimiter(100, 100)
	logger := discardLogger()

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(limiter, logger)(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Returns429WhenExhausted(t *testing.T) {
	limiter := NewInMemoryRateLimiter(0, 1)
	logger := discardLogger()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(limiter, logger)(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)

	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "application/problem+json", second.Header().Get("Content-Type"))
}
