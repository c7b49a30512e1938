package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives Run on the configured daily cron schedule, honoring the
// configured timezone.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler parses spec (as rendered by config.Config.CronSpec) in tz
// and registers a job that calls orch.Run on every tick, logging but not
// propagating each run's outcome (the run itself is the unit of retry and
// alerting).
func NewScheduler(spec, tz string, orch *Orchestrator, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}

	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(spec, func() {
		_, err := orch.Run(context.Background())
		if err != nil && !errors.Is(err, ErrAlreadyRunning) {
			logger.Error("scheduled run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{cron: c}, nil
}

// Start begins the scheduler's background goroutine. Non-blocking.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for any in-flight job to finish, then stops the scheduler.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
