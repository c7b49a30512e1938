// Package orchestrator drives one pipeline run end to end: acquiring the
// single-writer advisory lock, scanning the raw directory, parsing each
// file group, loading and aggregating inside one transaction, reconciling
// load counts against source counts, and recording the run's outcome.
// The lifecycle plumbing (start, graceful stop, single background owner)
// is grounded on the teacher's lineage_store connection lifecycle and its
// signal-driven server start/shutdown shape.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snak3gh0st/emendas-etl/internal/config"
	"github.com/snak3gh0st/emendas-etl/internal/domain"
	"github.com/snak3gh0st/emendas-etl/internal/dryrun"
	"github.com/snak3gh0st/emendas-etl/internal/storage"
)

// ErrAlreadyRunning is returned when the advisory lock is held by another
// process. The caller (the scheduler or the Trigger Listener) should treat
// this as a skip, not a failure.
var ErrAlreadyRunning = errors.New("orchestrator: another run is in progress")

// Alerter is notified once a run reaches a terminal state. internal/alert's
// Alerter satisfies this structurally; orchestrator never imports it, which
// keeps the dependency one-directional.
type Alerter interface {
	Notify(ctx context.Context, summary domain.RunLog, warnings []string) error
}

// Orchestrator owns a run's lifecycle. One instance is shared by the
// scheduler and the Trigger Listener; the advisory lock is what actually
// enforces single-writer semantics, not in-process state.
type Orchestrator struct {
	conn       *storage.Connection
	cfg        *config.Config
	logger     *slog.Logger
	alerter    Alerter
	reconciler *storage.Reconciler
}

// New builds an Orchestrator. alerter may be nil, in which case no
// notification is sent.
func New(conn *storage.Connection, cfg *config.Config, logger *slog.Logger, alerter Alerter) *Orchestrator {
	return &Orchestrator{
		conn:       conn,
		cfg:        cfg,
		logger:     logger,
		alerter:    alerter,
		reconciler: storage.NewReconciler(cfg.Reconciliation.VolumeTolerancePercent / 100),
	}
}

// RunResult summarizes one completed run.
type RunResult struct {
	RunID           uuid.UUID
	Status          domain.RunStatus
	SourceDir       string
	RecordsInserted int64
	RecordsUpdated  int64
	Warnings        []string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Run executes ACQUIRE_LOCK through RELEASE_LOCK for one dated directory,
// chosen by scanDir. A directory with nothing to ingest is not an error: it
// is logged and reported as an empty success.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New()
	startedAt := time.Now()

	loc, err := time.LoadLocation(o.cfg.Extraction.Timezone)
	if err != nil {
		loc = time.UTC
	}

	today := startedAt.In(loc).Format("2006-01-02")

	holder, acquired, err := acquireLock(ctx, o.conn.DB)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: acquiring advisory lock: %w", err)
	}

	if !acquired {
		o.logger.Info("run skipped, another run holds the advisory lock", slog.String("run_id", runID.String()))

		return nil, ErrAlreadyRunning
	}

	defer func() {
		if err := holder.release(context.Background()); err != nil {
			o.logger.Error("failed to release advisory lock", slog.String("error", err.Error()))
		}
	}()

	dir, err := scanDir(o.cfg.Extraction.RawRoot, today)
	if errors.Is(err, ErrNoRawDirectory) {
		o.logger.Info("no raw directory to ingest", slog.String("raw_root", o.cfg.Extraction.RawRoot))

		result := &RunResult{
			RunID: runID, Status: domain.RunSuccess, StartedAt: startedAt, FinishedAt: time.Now(),
		}

		o.persistRunLog(ctx, result, "")
		o.notify(ctx, result, "")

		return result, nil
	}

	if err != nil {
		return nil, fmt.Errorf("orchestrator: scanning raw root: %w", err)
	}

	data, report, err := dryrun.Execute(dir)
	if err != nil {
		result := &RunResult{RunID: runID, Status: domain.RunFailed, SourceDir: dir, StartedAt: startedAt, FinishedAt: time.Now()}
		o.persistRunLog(ctx, result, err.Error())
		o.notify(ctx, result, err.Error())

		return result, err
	}

	var counts storage.LoadCounts

	var reconcileWarnings []string

	loadErr := withRetry(ctx, func() error {
		counts = storage.LoadCounts{}

		c, warnings, err := o.loadOnce(ctx, runID, data)
		if err != nil {
			return err
		}

		counts = c
		reconcileWarnings = warnings

		return nil
	})

	result := &RunResult{
		RunID:           runID,
		SourceDir:       dir,
		RecordsInserted: counts.Inserted,
		RecordsUpdated:  counts.Updated,
		StartedAt:       startedAt,
		FinishedAt:      time.Now(),
	}

	warnings := append(append([]string{}, report.Warnings...), reconcileWarnings...)
	for _, e := range report.ValidationErrors {
		warnings = append(warnings, e)
	}

	result.Warnings = warnings

	switch {
	case loadErr != nil:
		result.Status = domain.RunFailed
		o.persistRunLog(ctx, result, loadErr.Error())
		o.notify(ctx, result, loadErr.Error())

		return result, loadErr
	case len(warnings) > 0:
		result.Status = domain.RunPartial
	default:
		result.Status = domain.RunSuccess
	}

	o.persistRunLog(ctx, result, "")
	o.notify(ctx, result, "")

	return result, nil
}

// DryRun executes only C1-C6 (no transaction, no advisory lock) and returns
// the preview report for `run --dry-run`.
func (o *Orchestrator) DryRun(ctx context.Context) (*dryrun.Report, error) {
	_ = ctx

	loc, err := time.LoadLocation(o.cfg.Extraction.Timezone)
	if err != nil {
		loc = time.UTC
	}

	today := time.Now().In(loc).Format("2006-01-02")

	dir, err := scanDir(o.cfg.Extraction.RawRoot, today)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: scanning raw root: %w", err)
	}

	_, report, err := dryrun.Execute(dir)
	if err != nil {
		return nil, err
	}

	return &report, nil
}

func (o *Orchestrator) notify(ctx context.Context, result *RunResult, errMsg string) {
	if o.alerter == nil {
		return
	}

	summary := domain.RunLog{
		RunID:           result.RunID.String(),
		Status:          result.Status,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
		RecordsInserted: result.RecordsInserted,
		RecordsUpdated:  result.RecordsUpdated,
		ErrorMessage:    errMsg,
		RawDirectory:    result.SourceDir,
	}

	if err := o.alerter.Notify(ctx, summary, result.Warnings); err != nil {
		o.logger.Error("failed to send run notification", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) persistRunLog(ctx context.Context, result *RunResult, errMsg string) {
	const query = `
		INSERT INTO extraction_logs (
			run_id, status, started_at, finished_at, records_inserted, records_updated, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			records_inserted = EXCLUDED.records_inserted,
			records_updated = EXCLUDED.records_updated,
			error_message = EXCLUDED.error_message`

	_, err := o.conn.ExecContext(ctx, query,
		result.RunID, string(result.Status), result.StartedAt, result.FinishedAt,
		result.RecordsInserted, result.RecordsUpdated, truncate(errMsg, 2000),
	)
	if err != nil {
		o.logger.Error("failed to persist run log", slog.String("error", err.Error()))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
