// Package trigger listens for an external "directory ready" notification
// and nudges the Orchestrator to run immediately instead of waiting for
// the next cron tick. It is entirely optional: a deployment with no Kafka
// broker configured runs on cron alone.
package trigger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Runner is the subset of the Orchestrator the Listener needs: one
// immediate run, subject to the same single-writer advisory lock.
type Runner interface {
	Run(ctx context.Context) (result any, err error)
}

// RunFunc adapts a plain function to Runner, letting callers wrap
// orchestrator.Run in a closure without this package importing
// internal/orchestrator (it only needs the one method, and the run
// result's concrete type doesn't matter here).
type RunFunc func(ctx context.Context) (any, error)

func (f RunFunc) Run(ctx context.Context) (any, error) { return f(ctx) }

// Listener consumes directory-ready notifications from Kafka. Each message
// payload is just the dated directory name; this package never reads row
// data. Consumption is at-least-once: duplicate notifications for a
// directory already ingested are harmless because the pipeline is
// idempotent.
type Listener struct {
	reader *kafka.Reader
	runner Runner
	logger *slog.Logger
}

// New builds a Listener. brokers/topic/groupID come from
// extraction.trigger.kafka.*; New returns nil if brokers is empty, meaning
// the caller should run on cron alone.
func New(brokers []string, topic, groupID string, runner Runner, logger *slog.Logger) *Listener {
	if len(brokers) == 0 || topic == "" {
		return nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})

	return &Listener{reader: reader, runner: runner, logger: logger}
}

// Listen blocks, consuming notifications until ctx is canceled. Each
// notification triggers an immediate run; a run already in progress
// (reported by the Orchestrator's advisory lock as AlreadyRunning) is
// logged and otherwise ignored, since the scheduled run will cover the
// same directory.
func (l *Listener) Listen(ctx context.Context) error {
	defer l.reader.Close()

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}

		l.logger.Info("trigger notification received", slog.String("directory", string(msg.Value)))

		if _, err := l.runner.Run(ctx); err != nil {
			l.logger.Warn("triggered run did not complete cleanly", slog.String("error", err.Error()))
		}
	}
}
