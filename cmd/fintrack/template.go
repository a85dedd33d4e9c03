package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
)

var templateFlags struct {
	title      string
	amount     string
	kind       string
	frequency  string
	start      string
	end        string
	dayOfMonth int
	dayOfWeek  string
	priority   string
	category   string
}

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage recurring templates",
}

var templateAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a recurring template",
	Example: `  fintrack template add --title Rent --amount 900 --frequency monthly --start 2025-01-31
  fintrack template add --title Salary --amount 3000 --type income --start 2025-01-27`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			t, err := templateFromFlags()
			if err != nil {
				return err
			}
			created, err := app.Templates.Create(ctx, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Created %s (%s), next due %s\n", created.Title, created.ID, created.NextOccurrence)
			return nil
		})
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			templates, err := app.Store.ListTemplates(ctx, flagOwner)
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\n  No templates found.")
				return nil
			}
			rows := make([][]string, 0, len(templates))
			for _, t := range templates {
				state := "active"
				if !t.IsActive {
					state = "paused"
				}
				rows = append(rows, []string{
					t.Title, t.ID, string(t.Type), string(t.Frequency), t.Amount.String(),
					dateOrDash(t.NextOccurrence), dateOrDash(t.LastProcessed), state,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(cli.Table{
				Headers: []string{"Title", "ID", "Type", "Frequency", "Amount", "Next", "Last", "State"},
				Rows:    rows,
			}))
			return nil
		})
	},
}

func toggleCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <template-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				t, err := app.Templates.SetActive(ctx, args[0], active)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s is now %s, next due %s\n", t.Title, map[bool]string{true: "active", false: "paused"}[t.IsActive], dateOrDash(t.NextOccurrence))
				return nil
			})
		},
	}
}

func init() {
	f := templateAddCmd.Flags()
	f.StringVar(&templateFlags.title, "title", "", "Template title")
	f.StringVar(&templateFlags.amount, "amount", "", "Amount, e.g. 12.50")
	f.StringVar(&templateFlags.kind, "type", string(core.Expense), "income or expense")
	f.StringVar(&templateFlags.frequency, "frequency", string(core.Monthly), "daily, weekly, biweekly, monthly, quarterly or yearly")
	f.StringVar(&templateFlags.start, "start", "", "Start date YYYY-MM-DD")
	f.StringVar(&templateFlags.end, "end", "", "Optional end date YYYY-MM-DD")
	f.IntVar(&templateFlags.dayOfMonth, "day-of-month", 0, "Anchor day for monthly, quarterly and yearly schedules")
	f.StringVar(&templateFlags.dayOfWeek, "day-of-week", "", "Anchor weekday for weekly and biweekly schedules")
	f.StringVar(&templateFlags.priority, "priority", "", "needs or wants (expenses only)")
	f.StringVar(&templateFlags.category, "category", "", "Optional category id")
	_ = templateAddCmd.MarkFlagRequired("title")
	_ = templateAddCmd.MarkFlagRequired("amount")
	_ = templateAddCmd.MarkFlagRequired("start")

	templateCmd.AddCommand(templateAddCmd, templateListCmd,
		toggleCmd("pause", "Stop materializing a template", false),
		toggleCmd("resume", "Resume a paused template from today", true))
	rootCmd.AddCommand(templateCmd)
}

func templateFromFlags() (core.RecurringTemplate, error) {
	amount, err := core.ParseMoney(templateFlags.amount)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	start, err := core.ParseDate(templateFlags.start)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	end, err := parseOptionalDate(templateFlags.end)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	wd, err := parseWeekday(templateFlags.dayOfWeek)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	return core.RecurringTemplate{
		OwnerID:           flagOwner,
		Title:             templateFlags.title,
		Amount:            amount,
		Type:              core.TransactionType(templateFlags.kind),
		Frequency:         core.Frequency(templateFlags.frequency),
		DayOfMonth:        optionalInt(templateFlags.dayOfMonth),
		DayOfWeek:         wd,
		StartDate:         start,
		EndDate:           end,
		CategoryID:        templateFlags.category,
		FinancialPriority: core.BucketType(templateFlags.priority),
	}, nil
}

func dateOrDash(d core.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}
