package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting recurring-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	dashboard := app.Dashboard()
	passLog := log.NewStructuredLogger(logger.WithComponent(log.ComponentProcessor))

	// After each pass, reconcile every owner's month so due soon and
	// overdue items reach the notification sink.
	afterPass := func(ctx context.Context, now time.Time) {
		started := time.Now()
		owners, err := app.Store.ListOwners(ctx)
		if err != nil {
			passLog.LogError(ctx, "Failed to list owners", err, log.OpReconcile, nil)
			return
		}
		today := core.DateOf(now)
		for _, owner := range owners {
			if _, err := dashboard.Refresh(ctx, owner, today); err != nil {
				passLog.LogError(ctx, "Failed to reconcile owner", err, log.OpReconcile, log.NewFields().WithOwner(owner))
			}
		}
		passLog.LogPass(ctx, app.Trigger.Seen(), len(owners), started, nil)
	}

	processor := app.Processor(services.RecurringProcessorConfig{
		Interval:  cfg.ProcessInterval,
		AfterPass: afterPass,
	})

	logger.Info("Recurring processor configured",
		"interval", cfg.ProcessInterval,
		"data_backend", cfg.DataBackend,
		"bucket_store", cfg.EffectiveBucketStore(),
		"amqp_enabled", cfg.AMQPURL != "")

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start recurring processor", log.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", log.FieldError, err)
	}
	logger.Info("Recurring-worker shutdown complete")
}
