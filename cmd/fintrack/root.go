package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

var (
	flagOwner string
	flagDate  string
)

var rootCmd = &cobra.Command{
	Use:           "fintrack",
	Short:         "Recurring obligations and monthly budget buckets",
	Long:          "Schedule recurring income and expenses, reconcile them against what was actually paid, and keep one budget bucket per month and priority.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	defaultOwner := os.Getenv("FINTRACK_OWNER")
	if defaultOwner == "" {
		defaultOwner = "default"
	}
	rootCmd.PersistentFlags().StringVarP(&flagOwner, "owner", "o", defaultOwner, "Owner the command acts on")
	rootCmd.PersistentFlags().StringVar(&flagDate, "date", "", "Reference date YYYY-MM-DD (default today)")
}

// withApp loads configuration, builds the services and runs fn.
func withApp(fn func(ctx context.Context, app *cli.App) error) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, log.ComponentCLI)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(log.NewContext(ctx, logger), app)
}

func referenceDate() (core.Date, error) {
	if flagDate == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(flagDate)
}

func parseOptionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func parseWeekday(s string) (*time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return nil, core.NewValidationError("day_of_week", "day of week must be between 0 and 6")
		}
		wd := time.Weekday(n)
		return &wd, nil
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return &wd, nil
		}
	}
	return nil, core.NewValidationError("day_of_week", fmt.Sprintf("unknown weekday %q", s))
}

func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
