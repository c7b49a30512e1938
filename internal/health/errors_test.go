package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProblemDetailSetsStandardFields(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	p := NewProblemDetail(http.StatusBadRequest, "Bad Request", "missing field x")

	require.Equal(t, http.StatusBadRequest, p.Status)
	require.Equal(t, "Bad Request", p.Title)
	require.Equal(t, "missing field x", p.Detail)
	require.Contains(t, p.Type, "400")
}

func TestProblemDetailFluentSetters(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	p := NotFound("run not found").WithInstance("/runs/123").WithCorrelationID("abc-123")

	require.Equal(t, http.StatusNotFound, p.Status)
	require.Equal(t, "/runs/123", p.Instance)
	require.Equal(t, "abc-123", p.CorrelationID)
}

func TestWriteErrorResponseWritesProblemJSON(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, req, discardLogger(), InternalServerError("db unreachable"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "db unreachable", body.Detail)
	require.Equal(t, "/health", body.Instance, "instance defaults to the request path when unset")
}

func TestWriteErrorResponsePreservesExplicitInstance(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, req, discardLogger(), BadRequest("bad input").WithInstance("/custom"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "/custom", body.Instance)
}
