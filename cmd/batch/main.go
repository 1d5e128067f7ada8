package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/internal/app"
	"github.com/flipcheck/flipcheck/internal/report"
	"github.com/flipcheck/flipcheck/internal/scheduler"
	"github.com/flipcheck/flipcheck/pkg/config"
	"github.com/flipcheck/flipcheck/pkg/logging"
	"github.com/flipcheck/flipcheck/pkg/telemetry"
)

func main() {
	flags := pflag.NewFlagSet("flipcheck-batch", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flipcheck-batch [flags] [username...]\n\nFlags:\n")
		flags.PrintDefaults()
	}
	flags.String("export-dir", "", "write a DOCX report per completed analysis into this directory")
	flags.String("schedule", "", "cron schedule to repeat the batch on, e.g. \"@daily\"")
	requester := flags.String("requester", "batch", "requester identity recorded on each analysis")
	once := flags.Bool("once", false, "run a single batch even when a schedule is configured")
	_ = flags.Parse(os.Args[1:])

	_ = viper.BindPFlag("batch_export_dir", flags.Lookup("export-dir"))
	_ = viper.BindPFlag("batch_schedule", flags.Lookup("schedule"))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting flipcheck batch")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	usernames := flags.Args()
	if len(usernames) == 0 {
		usernames = cfg.Batch.Usernames
	}
	if len(usernames) == 0 {
		logger.Fatal("No usernames given; pass them as arguments or set batch_usernames")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	run := func(ctx context.Context) {
		analyses := services.Analyzer.AnalyzeBatch(ctx, usernames, *requester)
		if len(analyses) == 0 {
			logger.Warn("Batch produced no completed analyses", zap.Strings("usernames", usernames))
			return
		}
		if cfg.Batch.ExportDir == "" {
			return
		}

		paths, err := report.ExportAll(cfg.Batch.ExportDir, analyses)
		if err != nil {
			logger.Error("Export failed", zap.Error(err), zap.Int("written", len(paths)))
			return
		}
		logger.Info("Reports exported", zap.String("dir", cfg.Batch.ExportDir), zap.Int("count", len(paths)))
	}

	if cfg.Batch.Schedule == "" || *once {
		run(ctx)
		logger.Info("Batch exited")
		return
	}

	sched := scheduler.New()
	if _, err := sched.Add("batch", cfg.Batch.Schedule, run); err != nil {
		logger.Fatal("Failed to schedule batch", zap.Error(err))
	}
	sched.Start()

	logger.Info("Batch scheduled, waiting for interrupt...", zap.String("schedule", cfg.Batch.Schedule))
	<-ctx.Done()

	logger.Info("Shutting down batch scheduler...")
	sched.Stop()
	logger.Info("Batch exited")
}
