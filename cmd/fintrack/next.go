package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/schedule"
)

var nextFlags struct {
	frequency  string
	start      string
	end        string
	last       string
	dayOfMonth int
	dayOfWeek  string
	count      int
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Compute upcoming occurrences of a schedule without storing it",
	Example: `  fintrack next --frequency monthly --start 2024-01-31 --date 2024-02-10
  fintrack next --frequency biweekly --start 2025-03-03 --day-of-week fri --count 4`,
	RunE: runNext,
}

func init() {
	f := nextCmd.Flags()
	f.StringVar(&nextFlags.frequency, "frequency", "monthly", "daily, weekly, biweekly, monthly, quarterly or yearly")
	f.StringVar(&nextFlags.start, "start", "", "Start date YYYY-MM-DD")
	f.StringVar(&nextFlags.end, "end", "", "Optional end date YYYY-MM-DD")
	f.StringVar(&nextFlags.last, "last", "", "Last processed occurrence YYYY-MM-DD")
	f.IntVar(&nextFlags.dayOfMonth, "day-of-month", 0, "Anchor day for monthly, quarterly and yearly schedules")
	f.StringVar(&nextFlags.dayOfWeek, "day-of-week", "", "Anchor weekday for weekly and biweekly schedules")
	f.IntVar(&nextFlags.count, "count", 1, "Number of occurrences to list")
	_ = nextCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, _ []string) error {
	t, err := scheduleFromFlags()
	if err != nil {
		return err
	}
	from, err := referenceDate()
	if err != nil {
		return err
	}

	calc := schedule.NewCalculator(nil)
	next, ok, err := calc.NextOccurrence(t, from)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderMuted("  No further occurrences before the end date."))
		return nil
	}

	rows := [][]string{{next.String(), cli.FormatDays(from.DaysUntil(next))}}
	for i := 1; i < nextFlags.count; i++ {
		next, ok, err = calc.NextAfter(t, next)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows = append(rows, []string{next.String(), cli.FormatDays(from.DaysUntil(next))})
	}

	fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("%s from %s", t.Frequency, from),
		Headers: []string{"Date", "When"},
		Rows:    rows,
	}))
	return nil
}

func scheduleFromFlags() (core.RecurringTemplate, error) {
	start, err := core.ParseDate(nextFlags.start)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	end, err := parseOptionalDate(nextFlags.end)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	last, err := parseOptionalDate(nextFlags.last)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	wd, err := parseWeekday(nextFlags.dayOfWeek)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	return core.RecurringTemplate{
		ID:            "cli",
		Frequency:     core.Frequency(nextFlags.frequency),
		StartDate:     start,
		EndDate:       end,
		LastProcessed: last,
		DayOfMonth:    optionalInt(nextFlags.dayOfMonth),
		DayOfWeek:     wd,
		IsActive:      true,
	}, nil
}
