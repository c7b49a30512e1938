// Package alert sends one notification per pipeline run: a Telegram
// message as the primary channel, falling back to SMTP email when
// Telegram is unreachable or unconfigured. No Telegram or SMTP SDK travels
// with this pipeline's dependency pack, so both channels are thin clients
// built directly on net/http and net/smtp (see DESIGN.md).
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snak3gh0st/emendas-etl/internal/config"
	"github.com/snak3gh0st/emendas-etl/internal/domain"
)

// Channel sends a run summary as a single message. Telegram and Email both
// implement it.
type Channel interface {
	Send(ctx context.Context, message string) error
}

// Alerter composes a primary and fallback Channel behind one interface,
// mirroring the teacher's pluggable-store-behind-an-interface shape
// (internal/storage persistent vs. memory key stores).
type Alerter struct {
	primary  Channel
	fallback Channel
	logger   *slog.Logger
}

// New builds an Alerter from the loaded alerting configuration. Either
// channel is nil if its configuration is incomplete; Notify tolerates both
// being nil by logging only.
func New(cfg config.AlertingConfig, logger *slog.Logger) *Alerter {
	a := &Alerter{logger: logger}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		a.primary = NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	}

	if cfg.EmailSMTPAddr != "" && cfg.EmailFrom != "" && len(cfg.EmailTo) > 0 {
		a.fallback = NewEmail(cfg.EmailSMTPAddr, cfg.EmailFrom, cfg.EmailTo)
	}

	return a
}

// Notify sends one message summarizing the run, trying the primary channel
// first and falling back on failure. The run id is always included so a
// retried notification is recognizable as a duplicate rather than a new
// event.
func (a *Alerter) Notify(ctx context.Context, summary domain.RunLog, warnings []string) error {
	message := formatMessage(summary, warnings)

	if a.primary != nil {
		if err := a.primary.Send(ctx, message); err == nil {
			return nil
		} else {
			a.logger.Warn("primary alert channel failed, falling back",
				slog.String("run_id", summary.RunID), slog.String("error", err.Error()))
		}
	}

	if a.fallback != nil {
		if err := a.fallback.Send(ctx, message); err != nil {
			return fmt.Errorf("alert: fallback channel failed: %w", err)
		}

		return nil
	}

	if a.primary == nil {
		a.logger.Info("no alert channel configured, message not sent", slog.String("run_id", summary.RunID))

		return nil
	}

	return fmt.Errorf("alert: primary channel failed and no fallback is configured")
}

const sampleErrorLimit = 5

func formatMessage(summary domain.RunLog, warnings []string) string {
	duration := summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second)

	msg := fmt.Sprintf(
		"emendas-etl run %s: %s\nsource: %s\nduration: %s\ninserted: %d, updated: %d\nrun_id: %s",
		summary.Status, statusHeadline(summary.Status), summary.RawDirectory, duration,
		summary.RecordsInserted, summary.RecordsUpdated, summary.RunID,
	)

	if summary.ErrorMessage != "" {
		msg += fmt.Sprintf("\nerror: %s", summary.ErrorMessage)
	}

	if len(warnings) > 0 {
		n := len(warnings)
		if n > sampleErrorLimit {
			n = sampleErrorLimit
		}

		msg += fmt.Sprintf("\nwarnings (%d total, showing %d):", len(warnings), n)

		for _, w := range warnings[:n] {
			msg += "\n- " + w
		}
	}

	return msg
}

func statusHeadline(status domain.RunStatus) string {
	switch status {
	case domain.RunSuccess:
		return "completed successfully"
	case domain.RunPartial:
		return "completed with warnings"
	case domain.RunFailed:
		return "failed"
	default:
		return "finished"
	}
}
