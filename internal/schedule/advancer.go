// Package schedule computes recurrence dates for recurring templates.
//
// Each frequency has its own Advancer that encapsulates how a date moves one
// period forward or backward. The Calculator owns the registry and is the
// single source of truth for when a template is next due.
package schedule

import (
	"time"

	"fintrack/internal/core"
)

// Advancer moves a date by exactly one period of a given frequency.
type Advancer interface {
	// Next returns the occurrence following base. anchor carries the
	// template's optional day-of-month / day-of-week pins.
	Next(base core.Date, anchor Anchor) core.Date
	// Prev returns the occurrence one period before d.
	Prev(d core.Date) core.Date
	// First returns the earliest anchored occurrence on or after start.
	First(start core.Date, anchor Anchor) core.Date
}

// Anchor pins a schedule to a day of the month or week.
type Anchor struct {
	DayOfMonth int          // 0 when unset
	DayOfWeek  time.Weekday // meaningful only when HasWeekday
	HasWeekday bool
}

// anchorFor derives the anchor used to advance t. Without an explicit
// day-of-month the start date's day is kept so that a day-31 schedule does
// not drift to day 28 after passing through February.
func anchorFor(t core.RecurringTemplate) Anchor {
	a := Anchor{DayOfMonth: t.StartDate.Day()}
	if t.DayOfMonth != nil {
		a.DayOfMonth = *t.DayOfMonth
	}
	if t.DayOfWeek != nil {
		a.DayOfWeek = *t.DayOfWeek
		a.HasWeekday = true
	}
	return a
}

// DailyAdvancer moves by one day.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(base core.Date, _ Anchor) core.Date { return base.AddDays(1) }
func (DailyAdvancer) Prev(d core.Date) core.Date              { return d.AddDays(-1) }

func (DailyAdvancer) First(start core.Date, _ Anchor) core.Date { return start }

// WeeklyAdvancer moves to the next matching weekday strictly after base.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(base core.Date, anchor Anchor) core.Date {
	days := daysToWeekday(base, anchor)
	if days == 0 {
		days = 7
	}
	return base.AddDays(days)
}

func (WeeklyAdvancer) Prev(d core.Date) core.Date { return d.AddDays(-7) }

func (WeeklyAdvancer) First(start core.Date, anchor Anchor) core.Date {
	return start.AddDays(daysToWeekday(start, anchor))
}

// BiweeklyAdvancer finds the matching weekday on or after base and pushes it
// two more weeks out, so a result is never closer than 14 days. When the
// anchor weekday equals base's weekday this yields base+14 rather than
// counting base itself twice.
type BiweeklyAdvancer struct{}

func (BiweeklyAdvancer) Next(base core.Date, anchor Anchor) core.Date {
	return base.AddDays(daysToWeekday(base, anchor) + 14)
}

func (BiweeklyAdvancer) Prev(d core.Date) core.Date { return d.AddDays(-14) }

func (BiweeklyAdvancer) First(start core.Date, anchor Anchor) core.Date {
	return start.AddDays(daysToWeekday(start, anchor))
}

// MonthsAdvancer moves by a fixed number of months and snaps the day to
// min(anchor day, days in target month).
type MonthsAdvancer struct {
	Months int
}

func (m MonthsAdvancer) Next(base core.Date, anchor Anchor) core.Date {
	day := anchor.DayOfMonth
	if day == 0 {
		day = base.Day()
	}
	return base.AddMonths(m.Months, day)
}

func (m MonthsAdvancer) Prev(d core.Date) core.Date {
	return d.AddMonths(-m.Months, d.Day())
}

// First snaps to the anchor day in start's month, or one period later when
// that day has already passed.
func (m MonthsAdvancer) First(start core.Date, anchor Anchor) core.Date {
	day := anchor.DayOfMonth
	if day == 0 {
		day = start.Day()
	}
	if first := start.AddMonths(0, day); !first.Before(start) {
		return first
	}
	return start.AddMonths(m.Months, day)
}

// daysToWeekday returns 0..6, the days from base to the anchor weekday.
func daysToWeekday(base core.Date, anchor Anchor) int {
	if !anchor.HasWeekday {
		return 0
	}
	return (int(anchor.DayOfWeek) - int(base.Weekday()) + 7) % 7
}

func defaultAdvancers() map[core.Frequency]Advancer {
	return map[core.Frequency]Advancer{
		core.Daily:     DailyAdvancer{},
		core.Weekly:    WeeklyAdvancer{},
		core.Biweekly:  BiweeklyAdvancer{},
		core.Monthly:   MonthsAdvancer{Months: 1},
		core.Quarterly: MonthsAdvancer{Months: 3},
		core.Yearly:    MonthsAdvancer{Months: 12},
	}
}
