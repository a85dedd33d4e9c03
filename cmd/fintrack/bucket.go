package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Ensure the month's needs, wants and savings buckets exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			ref, err := referenceDate()
			if err != nil {
				return err
			}
			buckets, err := app.Transactions.EnsureMonthBuckets(ctx, flagOwner, ref)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(buckets))
			for _, b := range buckets {
				rows = append(rows, []string{string(b.BucketType), b.PeriodStart.String(), b.PeriodEnd.String(), b.Amount.String(), b.ID})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(cli.Table{
				Title:   "Budget buckets for " + flagOwner,
				Headers: []string{"Bucket", "From", "To", "Amount", "ID"},
				Rows:    rows,
			}))
			return nil
		})
	},
}

var goalFlags struct {
	bucket     string
	percentage float64
	target     string
}

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Set the goal that seeds new buckets of a type",
	Example: `  fintrack goal --bucket needs --percentage 50
  fintrack goal --bucket savings --target 200`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			g := core.BudgetGoal{
				ID:         uuid.NewString(),
				OwnerID:    flagOwner,
				BucketType: core.BucketType(goalFlags.bucket),
			}
			if !g.BucketType.IsValid() {
				return core.NewValidationError("bucket", "bucket must be needs, wants or savings")
			}
			switch {
			case goalFlags.target != "":
				m, err := core.ParseMoney(goalFlags.target)
				if err != nil {
					return err
				}
				g.TargetAmount = &m
			case goalFlags.percentage > 0 && goalFlags.percentage <= 100:
				pct := goalFlags.percentage
				g.Percentage = &pct
			default:
				return core.NewValidationError("goal", "set --target or a --percentage in (0, 100]")
			}
			if err := app.Transactions.SaveGoal(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Saved %s goal for %s\n", g.BucketType, flagOwner)
			return nil
		})
	},
}

func init() {
	f := goalCmd.Flags()
	f.StringVar(&goalFlags.bucket, "bucket", "", "needs, wants or savings")
	f.Float64Var(&goalFlags.percentage, "percentage", 0, "Share of monthly income")
	f.StringVar(&goalFlags.target, "target", "", "Fixed amount")
	_ = goalCmd.MarkFlagRequired("bucket")

	rootCmd.AddCommand(bucketCmd, goalCmd)
}
