package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

// retryBackoffs is the fixed exponential backoff schedule for transient
// errors, per run. With maxAttempts = 3 (the initial try plus up to 2
// retries), only the first two waits (2s, then 4s, plus jitter) are used;
// the 8s entry is never reached.
var retryBackoffs = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

const maxAttempts = 3

// withRetry runs fn up to maxAttempts times, backing off only after a
// transient error. A non-transient error (validation, schema, or anything
// isTransient doesn't recognize) returns immediately without retrying.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isTransient(lastErr) || attempt == maxAttempts-1 {
			return lastErr
		}

		wait := retryBackoffs[attempt] + time.Duration(rand.Intn(500))*time.Millisecond

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// isTransient reports whether err is worth retrying: a connection-level or
// serialization failure from Postgres, a context deadline, or a closed
// connection. Validation and schema errors are never transient.
func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40": // connection_exception, transaction_rollback (serialization failures)
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}

	return false
}
