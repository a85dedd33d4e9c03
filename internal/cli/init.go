// Package cli provides common initialization shared by cmd/fintrack and
// cmd/recurring-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/reconcile"
	"fintrack/internal/schedule"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs the default logger for component at cfg's level.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, _ := cfg.SlogLevel()
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App wires the storage backend to the domain services.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Store        storage.Store
	Calculator   *schedule.Calculator
	Templates    *services.TemplateService
	Transactions *services.TransactionService
	Reconciler   *reconcile.Reconciler
	Trigger      *notify.Trigger

	cleanups []func() error
}

// Build opens the configured backend and constructs the services. The
// notification trigger publishes to AMQP when AMQP_URL is set and logs
// otherwise.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("load reconciliation policy: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    res.Store,
		cleanups: []func() error{res.Cleanup},
	}

	app.Calculator = schedule.NewCalculator(logger.WithComponent(log.ComponentSchedule).Logger)
	app.Templates = services.NewTemplateService(res.Store, app.Calculator)
	app.Transactions = services.NewTransactionService(res.Store, res.Allocator)
	app.Reconciler = reconcile.New(app.Calculator, policy)

	notifyLogger := logger.WithComponent(log.ComponentNotify)
	var sink notify.Sink = notify.LogSink{Logger: notifyLogger.Logger}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPNotifyQueue, logger.WithComponent(log.ComponentAMQP).Logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, notifications will only be logged", log.FieldError, err)
		} else {
			sink = notify.MultiSink{sink, client}
			app.cleanups = append(app.cleanups, client.Close)
		}
	}
	app.Trigger = notify.NewTrigger(sink, notifyLogger.Logger)

	return app, nil
}

// Processor returns a recurring processor over the app's services.
func (a *App) Processor(cfg services.RecurringProcessorConfig) *services.RecurringProcessor {
	return services.NewRecurringProcessor(a.Store, a.Transactions, a.Calculator, cfg)
}

// Dashboard returns a dashboard feeding the app's trigger.
func (a *App) Dashboard() *services.Dashboard {
	return services.NewDashboard(a.Store, a.Reconciler, a.Trigger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
