// Package reconcile derives the current-period status of recurring templates
// from their stored schedule and the transactions actually recorded.
package reconcile

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/schedule"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusDueSoon  Status = "due_soon"
	StatusOverdue  Status = "overdue"
	StatusPaid     Status = "paid"
)

// Policy holds the tolerance knobs of a reconciliation pass. New treats a
// zero PaidThreshold or a non-positive TimelineLength as unset and uses the
// DefaultPolicy value; config.Config.Policy rejects both before they get here.
type Policy struct {
	// PaidThreshold is the share of the template amount that settled
	// transactions must reach to count as paid.
	PaidThreshold decimal.Decimal
	// DueSoonDays is the inclusive window in which an unpaid item is due soon.
	DueSoonDays int
	// TimelineLength is the number of projections per active template.
	TimelineLength int
}

func DefaultPolicy() Policy {
	return Policy{
		PaidThreshold:  decimal.RequireFromString("0.85"),
		DueSoonDays:    3,
		TimelineLength: 3,
	}
}

// Occurrence is a template's derived state for the reference month.
type Occurrence struct {
	Template           core.RecurringTemplate
	IsPaid             bool
	PaidAmount         core.Money
	DaysUntilDue       int
	Status             Status
	CalculatedNextDate core.Date
}

// Projection is a forward-looking instance of a template.
type Projection struct {
	Template      core.RecurringTemplate
	ProjectedDate core.Date
	IsProjection  bool
}

type Result struct {
	CurrentPeriodItems []Occurrence
	TimelineItems      []Projection
}

// Reconciler is a pure function of its inputs; it keeps no state between
// calls and may be shared freely.
type Reconciler struct {
	calc   *schedule.Calculator
	policy Policy
}

func New(calc *schedule.Calculator, policy Policy) *Reconciler {
	if policy.TimelineLength <= 0 {
		policy.TimelineLength = DefaultPolicy().TimelineLength
	}
	if policy.PaidThreshold.IsZero() {
		policy.PaidThreshold = DefaultPolicy().PaidThreshold
	}
	return &Reconciler{calc: calc, policy: policy}
}

func (r *Reconciler) Policy() Policy { return r.policy }

// Reconcile computes the current-period items and the forward timeline for
// every active template. Both lists are sorted by date; ties keep input order.
func (r *Reconciler) Reconcile(templates []core.RecurringTemplate, transactions []core.RealizedTransaction, reference core.Date) Result {
	monthStart, monthEnd := reference.MonthStart(), reference.MonthEnd()
	byTemplate := groupByTemplate(transactions, monthStart, monthEnd)

	res := Result{
		CurrentPeriodItems: []Occurrence{},
		TimelineItems:      []Projection{},
	}
	for _, t := range templates {
		if !t.IsActive {
			continue
		}
		if item, ok := r.current(t, byTemplate[t.ID], reference, monthStart, monthEnd); ok {
			res.CurrentPeriodItems = append(res.CurrentPeriodItems, item)
		}
		res.TimelineItems = append(res.TimelineItems, r.timeline(t)...)
	}

	slices.SortStableFunc(res.CurrentPeriodItems, func(a, b Occurrence) int {
		return a.CalculatedNextDate.Compare(b.CalculatedNextDate.Time)
	})
	slices.SortStableFunc(res.TimelineItems, func(a, b Projection) int {
		return a.ProjectedDate.Compare(b.ProjectedDate.Time)
	})
	return res
}

func (r *Reconciler) current(t core.RecurringTemplate, matched []core.RealizedTransaction, reference, monthStart, monthEnd core.Date) (Occurrence, bool) {
	var paid core.Money
	for _, tx := range matched {
		if tx.Settles() {
			paid = paid.Add(tx.Amount)
		}
	}

	next := t.NextOccurrence
	hasNext := !next.IsZero()
	var previousDue core.Date
	if hasNext {
		previousDue = r.calc.PreviousOccurrence(next, t.Frequency)
	}

	nextInMonth := hasNext && next.Within(monthStart, monthEnd)
	previousInMonth := hasNext && previousDue.Within(monthStart, monthEnd)
	carriedOver := hasNext && next.Before(monthStart)
	hasPayment := len(matched) > 0

	if !nextInMonth && !previousInMonth && !carriedOver && !hasPayment {
		return Occurrence{}, false
	}

	// The schedule was already advanced past this month, which only happens
	// once this month's instance has been materialized.
	rolledOver := previousInMonth && next.After(monthEnd)

	display := next
	switch {
	case rolledOver:
		display = previousDue
	case !nextInMonth && !previousInMonth && !carriedOver:
		display = earliest(matched)
	}

	isPaid := rolledOver || r.meetsThreshold(paid, t.Amount)
	days := reference.DaysUntil(display)

	return Occurrence{
		Template:           t,
		IsPaid:             isPaid,
		PaidAmount:         paid,
		DaysUntilDue:       days,
		Status:             r.status(isPaid, days),
		CalculatedNextDate: display,
	}, true
}

func (r *Reconciler) meetsThreshold(paid, amount core.Money) bool {
	required := r.policy.PaidThreshold.Mul(amount.Abs().Decimal())
	return paid.Decimal().GreaterThanOrEqual(required)
}

func (r *Reconciler) status(isPaid bool, daysUntilDue int) Status {
	switch {
	case isPaid:
		return StatusPaid
	case daysUntilDue < 0:
		return StatusOverdue
	case daysUntilDue <= r.policy.DueSoonDays:
		return StatusDueSoon
	default:
		return StatusUpcoming
	}
}

// timeline projects the stored next occurrence and the ones that follow it.
// Templates that cannot be scheduled, or whose end date runs out, yield
// fewer entries.
func (r *Reconciler) timeline(t core.RecurringTemplate) []Projection {
	if t.NextOccurrence.IsZero() {
		return nil
	}
	if !t.EndDate.IsZero() && t.NextOccurrence.After(t.EndDate) {
		return nil
	}

	out := make([]Projection, 0, r.policy.TimelineLength)
	cursor := t.NextOccurrence
	for len(out) < r.policy.TimelineLength {
		out = append(out, Projection{Template: t, ProjectedDate: cursor, IsProjection: true})
		if len(out) == r.policy.TimelineLength {
			break
		}
		following, ok, err := r.calc.NextAfter(t, cursor)
		if err != nil || !ok || !following.After(cursor) {
			break
		}
		cursor = following
	}
	return out
}

func groupByTemplate(transactions []core.RealizedTransaction, monthStart, monthEnd core.Date) map[string][]core.RealizedTransaction {
	out := make(map[string][]core.RealizedTransaction)
	for _, tx := range transactions {
		if tx.RecurringTemplateID == "" || !tx.Date.Within(monthStart, monthEnd) {
			continue
		}
		out[tx.RecurringTemplateID] = append(out[tx.RecurringTemplateID], tx)
	}
	return out
}

func earliest(txs []core.RealizedTransaction) core.Date {
	return slices.MinFunc(txs, func(a, b core.RealizedTransaction) int {
		return cmp.Compare(a.Date.Unix(), b.Date.Unix())
	}).Date
}
