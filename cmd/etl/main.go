// Package main provides the emendas ETL pipeline's command-line surface:
// a single run, a dry-run preview, or a long-running scheduler+health
// server process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/snak3gh0st/emendas-etl/internal/alert"
	"github.com/snak3gh0st/emendas-etl/internal/config"
	"github.com/snak3gh0st/emendas-etl/internal/dryrun"
	"github.com/snak3gh0st/emendas-etl/internal/health"
	"github.com/snak3gh0st/emendas-etl/internal/orchestrator"
	"github.com/snak3gh0st/emendas-etl/internal/storage"
	"github.com/snak3gh0st/emendas-etl/internal/trigger"
)

const (
	name    = "emendas-etl"
	version = "1.0.0-dev"
)

// Exit codes per the command-line surface.
const (
	exitOK               = 0
	exitInfraFailure     = 1
	exitValidationFailed = 2
	exitInterrupted      = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.CommandLine.Parse(args) //nolint:errcheck

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)

		return exitOK
	}

	command := "run"
	rest := flag.Args()

	if len(rest) > 0 {
		command = rest[0]
		rest = rest[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)

		return exitInfraFailure
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("starting "+name, slog.String("version", version), slog.String("command", command))

	switch command {
	case "run":
		dryRun := flag.NewFlagSet("run", flag.ExitOnError)
		dryRunFlag := dryRun.Bool("dry-run", false, "parse and validate only, no writes")
		dryRun.Parse(rest) //nolint:errcheck

		return runOnce(logger, cfg, *dryRunFlag)
	case "serve":
		return serve(logger, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)

		return exitInfraFailure
	}
}

func runOnce(logger *slog.Logger, cfg *config.Config, dry bool) int {
	conn, err := storage.NewConnection(storage.FromDatabaseConfig(cfg.Database))
	if err != nil {
		logger.Error("database connection failed", slog.String("error", err.Error()))

		return exitInfraFailure
	}

	defer conn.Close()

	alerter := alert.New(cfg.Alerting, logger)
	orch := orchestrator.New(conn, cfg, logger, alerter)

	ctx, cancel := signalContext()
	defer cancel()

	if dry {
		report, err := orch.DryRun(ctx)
		if err != nil {
			logger.Error("dry run failed", slog.String("error", err.Error()))

			return exitInfraFailure
		}

		printDryRunReport(report)

		if len(report.ValidationErrors) > 0 {
			return exitValidationFailed
		}

		return exitOK
	}

	result, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyRunning) {
			logger.Info("skipped: another run is in progress")

			return exitOK
		}

		if ctx.Err() != nil {
			return exitInterrupted
		}

		logger.Error("run failed", slog.String("error", err.Error()))

		return exitInfraFailure
	}

	logger.Info("run finished",
		slog.String("run_id", result.RunID.String()),
		slog.String("status", string(result.Status)),
		slog.Int64("inserted", result.RecordsInserted),
		slog.Int64("updated", result.RecordsUpdated),
		slog.Int("warnings", len(result.Warnings)),
	)

	return exitOK
}

func serve(logger *slog.Logger, cfg *config.Config) int {
	conn, err := storage.NewConnection(storage.FromDatabaseConfig(cfg.Database))
	if err != nil {
		logger.Error("database connection failed", slog.String("error", err.Error()))

		return exitInfraFailure
	}

	defer conn.Close()

	alerter := alert.New(cfg.Alerting, logger)
	orch := orchestrator.New(conn, cfg, logger, alerter)

	ctx, cancel := signalContext()
	defer cancel()

	sched, err := orchestrator.NewScheduler(cfg.CronSpec(), cfg.Extraction.Timezone, orch, logger)
	if err != nil {
		logger.Error("scheduler setup failed", slog.String("error", err.Error()))

		return exitInfraFailure
	}

	sched.Start()
	defer sched.Stop()

	listener := trigger.New(
		cfg.Extraction.KafkaBrokers, cfg.Extraction.KafkaTopic, cfg.Extraction.KafkaGroupID,
		trigger.RunFunc(func(ctx context.Context) (any, error) { return orch.Run(ctx) }),
		logger,
	)

	if listener != nil {
		go func() {
			if err := listener.Listen(ctx); err != nil {
				logger.Error("trigger listener stopped", slog.String("error", err.Error()))
			}
		}()
	}

	server := health.NewServer(cfg.HTTP, conn, logger)

	serverErrs := make(chan error, 1)

	go func() { serverErrs <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrs:
		if err != nil {
			logger.Error("health server stopped", slog.String("error", err.Error()))

			return exitInfraFailure
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", slog.String("error", err.Error()))
	}

	return exitInterrupted
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printDryRunReport(report *dryrun.Report) {
	fmt.Println("entities found:")

	for k, v := range report.EntitiesFound {
		fmt.Printf("  %s: %d\n", k, v)
	}

	fmt.Println("relationships found:")

	for k, v := range report.RelationshipsFound {
		fmt.Printf("  %s: %d\n", k, v)
	}

	if len(report.Warnings) > 0 {
		fmt.Println("warnings:")

		for _, w := range report.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	if len(report.ValidationErrors) > 0 {
		fmt.Println("validation errors:")

		for _, e := range report.ValidationErrors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
