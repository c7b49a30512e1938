package health

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Thresholds for the health verdict, measured against the latest run's
// finished_at.
const (
	healthyWithin  = 25 * time.Hour
	degradedWithin = 48 * time.Hour
)

// Status values reported on GET /health.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// LastRun is the subset of extraction_logs the health endpoint reports.
type LastRun struct {
	RunID           string
	Status          string
	FinishedAt      time.Time
	RecordsInserted int64
	RecordsUpdated  int64
	ErrorMessage    string
}

// RunReader reads the most recent terminal run, used by the health
// endpoint. *sql.DB (and storage.Connection, which embeds it) satisfies
// this directly.
type RunReader interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LatestRun returns the most recently finished run, or ok=false if none
// has ever completed.
func LatestRun(ctx context.Context, db RunReader) (LastRun, bool, error) {
	const query = `
		SELECT run_id, status, finished_at, records_inserted, records_updated, coalesce(error_message, '')
		FROM extraction_logs
		WHERE finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT 1`

	var run LastRun

	err := db.QueryRowContext(ctx, query).Scan(
		&run.RunID, &run.Status, &run.FinishedAt, &run.RecordsInserted, &run.RecordsUpdated, &run.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return LastRun{}, false, nil
	}

	if err != nil {
		return LastRun{}, false, err
	}

	return run, true, nil
}

// Verdict classifies a LastRun's age into the health status scale.
func Verdict(run LastRun, ok bool, now time.Time) string {
	if !ok {
		return StatusUnknown
	}

	age := now.Sub(run.FinishedAt)

	switch {
	case age <= healthyWithin:
		return StatusHealthy
	case age <= degradedWithin:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}
