package schedule

import (
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

// maxSteps bounds the catch-up loop. Every advancer strictly moves forward,
// so this is only reached for reference dates thousands of years out.
const maxSteps = 1_000_000

// Calculator maps a recurring template and a reference date to the next due
// date. It is pure and safe for concurrent use once constructed.
type Calculator struct {
	advancers map[core.Frequency]Advancer
	logger    *slog.Logger
}

// NewCalculator returns a Calculator with the built-in frequencies.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		advancers: defaultAdvancers(),
		logger:    logger,
	}
}

// Register installs a custom advancer for a frequency. It must be called
// before the calculator is shared between goroutines.
func (c *Calculator) Register(f core.Frequency, a Advancer) {
	c.advancers[f] = a
}

// Advancer returns the strategy for f. Unknown frequencies fall back to the
// monthly cadence and report a ConfigurationError alongside the fallback.
func (c *Calculator) Advancer(f core.Frequency) (Advancer, error) {
	if a, ok := c.advancers[f]; ok {
		return a, nil
	}
	return c.advancers[core.Monthly], &core.ConfigurationError{Value: string(f), Fallback: string(core.Monthly)}
}

func (c *Calculator) advancerFor(f core.Frequency) Advancer {
	a, err := c.Advancer(f)
	if err != nil {
		c.logger.Warn("Unsupported frequency, using monthly cadence",
			"frequency", f,
			"error_type", "configuration_error",
			"error", err)
	}
	return a
}

// NextOccurrence returns the first occurrence of t that is one period past
// its base date and not before from. ok is false when the template's end date
// has been exhausted. A malformed template yields a ValidationError.
func (c *Calculator) NextOccurrence(t core.RecurringTemplate, from core.Date) (next core.Date, ok bool, err error) {
	if err := t.ValidateSchedule(); err != nil {
		return core.Date{}, false, err
	}

	adv := c.advancerFor(t.Frequency)
	anchor := anchorFor(t)

	base := t.StartDate
	if !t.LastProcessed.IsZero() && !t.LastProcessed.Before(t.StartDate) {
		base = t.LastProcessed
	}

	candidate := adv.Next(base, anchor)
	for steps := 0; candidate.Before(from); steps++ {
		if steps >= maxSteps {
			return core.Date{}, false, fmt.Errorf("next occurrence of %s from %s: no progress after %d steps", t.ID, from, maxSteps)
		}
		if !t.EndDate.IsZero() && candidate.After(t.EndDate) {
			return core.Date{}, false, nil
		}
		candidate = adv.Next(candidate, anchor)
	}

	if candidate.Before(t.StartDate) {
		candidate = t.StartDate
	}
	if !t.EndDate.IsZero() && candidate.After(t.EndDate) {
		return core.Date{}, false, nil
	}
	return candidate, true, nil
}

// NextAfter returns the occurrence directly following d, as if d had just
// been materialized.
func (c *Calculator) NextAfter(t core.RecurringTemplate, d core.Date) (core.Date, bool, error) {
	t.LastProcessed = d
	return c.NextOccurrence(t, d)
}

// PreviousOccurrence moves d back by one period of f.
func (c *Calculator) PreviousOccurrence(d core.Date, f core.Frequency) core.Date {
	return c.advancerFor(f).Prev(d)
}

// Stamp computes the NextOccurrence a template should carry as of today.
// Callers that create or update templates use it so the stored schedule and
// the reconciler agree on the same rules. A template that has never been
// processed and starts today or later is first due on the earliest anchored
// date on or after its start date.
func (c *Calculator) Stamp(t core.RecurringTemplate, today core.Date) (core.RecurringTemplate, bool, error) {
	if err := t.ValidateSchedule(); err != nil {
		return t, false, err
	}
	if t.LastProcessed.IsZero() && !t.StartDate.Before(today) {
		first := c.advancerFor(t.Frequency).First(t.StartDate, anchorFor(t))
		if !t.EndDate.IsZero() && first.After(t.EndDate) {
			t.NextOccurrence = core.Date{}
			return t, false, nil
		}
		t.NextOccurrence = first
		return t, true, nil
	}

	next, ok, err := c.NextOccurrence(t, today)
	if err != nil {
		return t, false, err
	}
	if ok {
		t.NextOccurrence = next
	} else {
		t.NextOccurrence = core.Date{}
	}
	return t, ok, nil
}
