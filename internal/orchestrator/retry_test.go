package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestIsTransient(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection exception", &pq.Error{Code: "08006"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"syntax error is not transient", &pq.Error{Code: "42601"}, false},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"closed connection", sql.ErrConnDone, true},
		{"closed transaction", sql.ErrTxDone, true},
		{"plain error is not transient", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetrySucceedsWithoutRetryingOnSuccess(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	calls := 0

	err := withRetry(context.Background(), func() error {
		calls++

		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetryDoesNotRetryNonTransientErrors(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	calls := 0
	wantErr := errors.New("schema validation failed")

	err := withRetry(context.Background(), func() error {
		calls++

		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("withRetry() error = %v, want %v", err, wantErr)
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-transient errors must not retry)", calls)
	}
}

func TestWithRetryRetriesTransientErrorsUpToMaxAttempts(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	calls := 0

	err := withRetry(context.Background(), func() error {
		calls++

		return sql.ErrConnDone
	})

	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("withRetry() error = %v, want %v", err, sql.ErrConnDone)
	}

	if calls != maxAttempts {
		t.Errorf("calls = %d, want %d", calls, maxAttempts)
	}
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0

	err := withRetry(ctx, func() error {
		calls++

		if calls == 1 {
			cancel()
		}

		return sql.ErrConnDone
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("withRetry() error = %v, want %v", err, context.Canceled)
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancellation must stop further attempts)", calls)
	}
}
