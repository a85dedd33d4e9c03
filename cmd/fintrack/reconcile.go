package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/reconcile"
)

var flagNotify bool

var reconcileCmd = &cobra.Command{
	Use:     "reconcile",
	Aliases: []string{"status"},
	Short:   "Show this month's recurring items and the upcoming timeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			ref, err := referenceDate()
			if err != nil {
				return err
			}

			var res reconcile.Result
			if flagNotify {
				res, err = app.Dashboard().Refresh(ctx, flagOwner, ref)
			} else {
				res, err = reconcileOnly(ctx, app, ref)
			}
			if err != nil {
				return err
			}
			renderResult(cmd, res, ref.String())
			return nil
		})
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&flagNotify, "notify", false, "Send notifications for due soon and overdue items")
	rootCmd.AddCommand(reconcileCmd)
}

func renderResult(cmd *cobra.Command, res reconcile.Result, ref string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, cli.RenderTitle("RECURRING  "+ref))
	fmt.Fprintln(out)

	if len(res.CurrentPeriodItems) == 0 {
		fmt.Fprintln(out, cli.RenderMuted("  Nothing due this month."))
	} else {
		rows := make([][]string, 0, len(res.CurrentPeriodItems))
		for _, item := range res.CurrentPeriodItems {
			rows = append(rows, []string{
				item.Template.Title,
				string(item.Template.Type),
				item.Template.Amount.String(),
				item.PaidAmount.String(),
				item.CalculatedNextDate.String(),
				cli.FormatDays(item.DaysUntilDue),
				cli.RenderStatus(item.Status),
			})
		}
		fmt.Fprint(out, cli.RenderTable(cli.Table{
			Title:   "This month",
			Headers: []string{"Title", "Type", "Amount", "Paid", "Due", "When", "Status"},
			Rows:    rows,
		}))
	}

	if len(res.TimelineItems) > 0 {
		rows := make([][]string, 0, len(res.TimelineItems))
		for _, p := range res.TimelineItems {
			rows = append(rows, []string{p.Template.Title, p.ProjectedDate.String(), p.Template.Amount.String()})
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, cli.RenderTable(cli.Table{
			Title:   "Upcoming",
			Headers: []string{"Title", "Date", "Amount"},
			Rows:    rows,
		}))
	}
}
