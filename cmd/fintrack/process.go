package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/reconcile"
	"fintrack/internal/services"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Materialize every occurrence due on or before the reference date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			ref, err := referenceDate()
			if err != nil {
				return err
			}
			n, err := app.Processor(services.DefaultRecurringProcessorConfig()).ProcessDue(ctx, ref.Time)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Materialized %d transaction(s) up to %s\n", n, ref)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}

// reconcileOnly reconciles without touching the notification trigger.
func reconcileOnly(ctx context.Context, app *cli.App, ref core.Date) (reconcile.Result, error) {
	return services.NewDashboard(app.Store, app.Reconciler, nil).Refresh(ctx, flagOwner, ref)
}
