package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCorrelationIDGeneratesWhenHeaderAbsent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var captured string

	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if captured == "" {
		t.Fatal("correlation ID was not propagated into the request context")
	}

	if got := rec.Header().Get("X-Correlation-ID"); got != captured {
		t.Errorf("response header X-Correlation-ID = %q, want %q (match the context value)", got, captured)
	}
}

func TestCorrelationIDReusesIncomingHeader(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var captured string

	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "client-supplied-id")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if captured != "client-supplied-id" {
		t.Errorf("captured correlation ID = %q, want the client-supplied value", captured)
	}
}

func TestGetCorrelationIDWithoutMiddlewareReturnsUnknown(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	if got := GetCorrelationID(req.Context()); got != "unknown" {
		t.Errorf("GetCorrelationID() = %q, want %q", got, "unknown")
	}
}
