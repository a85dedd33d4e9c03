package reconcile

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/schedule"
)

var reference = core.NewDate(2025, 3, 10)

func newTestReconciler(p Policy) *Reconciler {
	calc := schedule.NewCalculator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(calc, p)
}

func bill(id string, cents int64, next core.Date) core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:             id,
		OwnerID:        "u1",
		Title:          id,
		Amount:         core.Money{Cents: cents},
		Type:           core.Expense,
		Frequency:      core.Monthly,
		StartDate:      core.NewDate(2024, 1, next.Day()),
		NextOccurrence: next,
		IsActive:       true,
	}
}

func paidExpense(templateID string, cents int64, d core.Date) core.RealizedTransaction {
	return core.RealizedTransaction{
		ID:                  templateID + "-" + d.String(),
		RecurringTemplateID: templateID,
		Type:                core.Expense,
		Amount:              core.Money{Cents: cents},
		Date:                d,
		IsPaid:              true,
		BudgetBucketID:      "b1",
	}
}

func findItem(t *testing.T, res Result, id string) Occurrence {
	t.Helper()
	for _, it := range res.CurrentPeriodItems {
		if it.Template.ID == id {
			return it
		}
	}
	t.Fatalf("template %s missing from current period items", id)
	return Occurrence{}
}

func hasItem(res Result, id string) bool {
	for _, it := range res.CurrentPeriodItems {
		if it.Template.ID == id {
			return true
		}
	}
	return false
}

func TestReconcile_FuzzyPaidBoundary(t *testing.T) {
	tests := []struct {
		name       string
		paidCents  int64
		wantPaid   bool
		wantStatus Status
	}{
		{"exactly 85 percent", 8500, true, StatusPaid},
		{"one cent short", 8499, false, StatusDueSoon},
		{"overpaid", 10250, true, StatusPaid},
	}
	r := newTestReconciler(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := bill("rent", 10000, reference)
			res := r.Reconcile(
				[]core.RecurringTemplate{tpl},
				[]core.RealizedTransaction{paidExpense("rent", tt.paidCents, reference)},
				reference,
			)
			item := findItem(t, res, "rent")
			if item.IsPaid != tt.wantPaid {
				t.Errorf("IsPaid = %v, want %v", item.IsPaid, tt.wantPaid)
			}
			if item.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", item.Status, tt.wantStatus)
			}
			if item.PaidAmount.Cents != tt.paidCents {
				t.Errorf("PaidAmount = %d, want %d", item.PaidAmount.Cents, tt.paidCents)
			}
		})
	}
}

func TestReconcile_SettlementAsymmetry(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())

	expense := bill("gym", 5000, core.NewDate(2025, 3, 20))
	unpaid := paidExpense("gym", 5000, core.NewDate(2025, 3, 2))
	unpaid.IsPaid = false

	salary := bill("salary", 300000, core.NewDate(2025, 3, 27))
	salary.Type = core.Income
	received := core.RealizedTransaction{
		RecurringTemplateID: "salary",
		Type:                core.Income,
		Amount:              core.Money{Cents: 300000},
		Date:                core.NewDate(2025, 3, 5),
	}

	res := r.Reconcile(
		[]core.RecurringTemplate{expense, salary},
		[]core.RealizedTransaction{unpaid, received},
		reference,
	)

	if item := findItem(t, res, "gym"); item.IsPaid || item.PaidAmount.Cents != 0 {
		t.Errorf("unpaid expense counted: IsPaid=%v PaidAmount=%d", item.IsPaid, item.PaidAmount.Cents)
	}
	if item := findItem(t, res, "salary"); !item.IsPaid || item.Status != StatusPaid {
		t.Errorf("income not counted: IsPaid=%v Status=%s", item.IsPaid, item.Status)
	}
}

func TestReconcile_RolloverShowsThisMonthAsPaid(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	tpl := bill("phone", 3000, core.NewDate(2025, 4, 15))

	res := r.Reconcile([]core.RecurringTemplate{tpl}, nil, reference)

	item := findItem(t, res, "phone")
	if item.Status != StatusPaid || !item.IsPaid {
		t.Errorf("Status = %s IsPaid = %v, want paid", item.Status, item.IsPaid)
	}
	if !item.CalculatedNextDate.Equal(core.NewDate(2025, 3, 15)) {
		t.Errorf("CalculatedNextDate = %s, want 2025-03-15", item.CalculatedNextDate)
	}
	if item.DaysUntilDue != 5 {
		t.Errorf("DaysUntilDue = %d, want 5", item.DaysUntilDue)
	}
}

func TestReconcile_OverdueCarryForward(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	tpl := bill("insurance", 12000, core.NewDate(2025, 1, 10))

	res := r.Reconcile([]core.RecurringTemplate{tpl}, nil, reference)

	item := findItem(t, res, "insurance")
	if item.Status != StatusOverdue {
		t.Errorf("Status = %s, want overdue", item.Status)
	}
	if item.DaysUntilDue != -59 {
		t.Errorf("DaysUntilDue = %d, want -59", item.DaysUntilDue)
	}
	if item.IsPaid {
		t.Error("IsPaid should be false")
	}
}

func TestReconcile_StatusWindows(t *testing.T) {
	tests := []struct {
		name string
		next core.Date
		want Status
		days int
	}{
		{"due today", core.NewDate(2025, 3, 10), StatusDueSoon, 0},
		{"due in three days", core.NewDate(2025, 3, 13), StatusDueSoon, 3},
		{"due in four days", core.NewDate(2025, 3, 14), StatusUpcoming, 4},
		{"due yesterday", core.NewDate(2025, 3, 9), StatusOverdue, -1},
		{"end of month", core.NewDate(2025, 3, 31), StatusUpcoming, 21},
	}
	r := newTestReconciler(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Reconcile([]core.RecurringTemplate{bill("x", 1000, tt.next)}, nil, reference)
			item := findItem(t, res, "x")
			if item.Status != tt.want {
				t.Errorf("Status = %s, want %s", item.Status, tt.want)
			}
			if item.DaysUntilDue != tt.days {
				t.Errorf("DaysUntilDue = %d, want %d", item.DaysUntilDue, tt.days)
			}
		})
	}
}

func TestReconcile_WeeklyBothOccurrencesInMonthIsNotRollover(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	tpl := bill("cleaning", 4000, core.NewDate(2025, 3, 14))
	tpl.Frequency = core.Weekly

	item := findItem(t, r.Reconcile([]core.RecurringTemplate{tpl}, nil, reference), "cleaning")
	if item.IsPaid {
		t.Error("weekly template with next in month must not be treated as rolled over")
	}
	if !item.CalculatedNextDate.Equal(tpl.NextOccurrence) {
		t.Errorf("CalculatedNextDate = %s, want %s", item.CalculatedNextDate, tpl.NextOccurrence)
	}
}

func TestReconcile_EarlyPaymentWithoutScheduleOverlap(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	tpl := bill("tax", 20000, core.NewDate(2025, 7, 20))
	tpl.Frequency = core.Quarterly

	txs := []core.RealizedTransaction{
		paidExpense("tax", 10000, core.NewDate(2025, 3, 8)),
		paidExpense("tax", 10000, core.NewDate(2025, 3, 3)),
	}
	item := findItem(t, r.Reconcile([]core.RecurringTemplate{tpl}, txs, reference), "tax")

	if !item.CalculatedNextDate.Equal(core.NewDate(2025, 3, 3)) {
		t.Errorf("CalculatedNextDate = %s, want first payment date 2025-03-03", item.CalculatedNextDate)
	}
	if item.Status != StatusPaid || item.PaidAmount.Cents != 20000 {
		t.Errorf("Status = %s PaidAmount = %d, want paid 20000", item.Status, item.PaidAmount.Cents)
	}
}

func TestReconcile_Exclusions(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())

	future := bill("future", 1000, core.NewDate(2025, 7, 1))
	inactive := bill("inactive", 1000, core.NewDate(2025, 3, 12))
	inactive.IsActive = false

	txs := []core.RealizedTransaction{
		paidExpense("future", 1000, core.NewDate(2025, 2, 28)),  // previous month
		paidExpense("inactive", 1000, core.NewDate(2025, 3, 2)), // inactive template
		{ID: "loose", Type: core.Expense, Amount: core.Money{Cents: 999}, Date: reference, IsPaid: true},
	}
	res := r.Reconcile([]core.RecurringTemplate{future, inactive}, txs, reference)

	if hasItem(res, "future") {
		t.Error("template with no schedule or payment in month should be excluded")
	}
	if hasItem(res, "inactive") {
		t.Error("inactive template should be excluded")
	}
	for _, p := range res.TimelineItems {
		if p.Template.ID == "inactive" {
			t.Fatal("inactive template should not be projected")
		}
	}
}

func TestReconcile_Timeline(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())

	rent := bill("rent", 100000, core.NewDate(2025, 3, 31))
	rent.StartDate = core.NewDate(2024, 1, 31)
	far := bill("far", 1000, core.NewDate(2025, 9, 1))
	res := r.Reconcile([]core.RecurringTemplate{far, rent}, nil, reference)

	perTemplate := map[string][]core.Date{}
	for _, p := range res.TimelineItems {
		if !p.IsProjection {
			t.Fatalf("projection %s not flagged", p.ProjectedDate)
		}
		perTemplate[p.Template.ID] = append(perTemplate[p.Template.ID], p.ProjectedDate)
	}
	for id, dates := range perTemplate {
		if len(dates) != 3 {
			t.Fatalf("%s has %d projections, want 3", id, len(dates))
		}
		for i := 1; i < len(dates); i++ {
			if !dates[i].After(dates[i-1]) {
				t.Fatalf("%s projections not strictly increasing: %v", id, dates)
			}
		}
	}
	if len(perTemplate) != 2 {
		t.Fatalf("timeline covers %d templates, want 2", len(perTemplate))
	}

	want := []core.Date{core.NewDate(2025, 3, 31), core.NewDate(2025, 4, 30), core.NewDate(2025, 5, 31)}
	for i, d := range perTemplate["rent"] {
		if !d.Equal(want[i]) {
			t.Errorf("rent projection %d = %s, want %s", i, d, want[i])
		}
	}

	for i := 1; i < len(res.TimelineItems); i++ {
		if res.TimelineItems[i].ProjectedDate.Before(res.TimelineItems[i-1].ProjectedDate) {
			t.Fatal("timeline not sorted by projected date")
		}
	}
}

func TestReconcile_TimelineStopsAtEndDate(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	tpl := bill("loan", 5000, core.NewDate(2025, 3, 15))
	tpl.StartDate = core.NewDate(2025, 1, 15)
	tpl.EndDate = core.NewDate(2025, 4, 15)

	res := r.Reconcile([]core.RecurringTemplate{tpl}, nil, reference)
	if got := len(res.TimelineItems); got != 2 {
		t.Fatalf("timeline has %d entries, want 2", got)
	}

	tpl.NextOccurrence = core.NewDate(2025, 5, 15)
	res = r.Reconcile([]core.RecurringTemplate{tpl}, nil, reference)
	if got := len(res.TimelineItems); got != 0 {
		t.Fatalf("timeline has %d entries past end date, want 0", got)
	}
}

func TestReconcile_CurrentItemsSorted(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	res := r.Reconcile([]core.RecurringTemplate{
		bill("c", 1000, core.NewDate(2025, 3, 28)),
		bill("a", 1000, core.NewDate(2025, 3, 2)),
		bill("b", 1000, core.NewDate(2025, 3, 15)),
	}, nil, reference)

	var got []string
	for _, it := range res.CurrentPeriodItems {
		got = append(got, it.Template.ID)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", got)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	templates := []core.RecurringTemplate{
		bill("rent", 100000, core.NewDate(2025, 3, 1)),
		bill("phone", 3000, core.NewDate(2025, 4, 15)),
		bill("insurance", 12000, core.NewDate(2025, 1, 10)),
	}
	txs := []core.RealizedTransaction{paidExpense("rent", 100000, core.NewDate(2025, 3, 1))}

	first := r.Reconcile(templates, txs, reference)
	second := r.Reconcile(templates, txs, reference)
	if !reflect.DeepEqual(first, second) {
		t.Error("Reconcile() is not idempotent")
	}
}

func TestReconcile_TotalOverMalformedTemplates(t *testing.T) {
	r := newTestReconciler(DefaultPolicy())
	broken := bill("broken", 1000, core.NewDate(2025, 3, 20))
	broken.Frequency = ""
	unscheduled := bill("unscheduled", 1000, core.Date{})
	odd := bill("odd", 1000, core.NewDate(2025, 3, 20))
	odd.Frequency = "fortnightly"

	res := r.Reconcile([]core.RecurringTemplate{broken, unscheduled, odd}, nil, reference)

	if item := findItem(t, res, "broken"); item.Status != StatusUpcoming {
		t.Errorf("broken Status = %s, want upcoming", item.Status)
	}
	if hasItem(res, "unscheduled") {
		t.Error("template without a schedule or payment should be skipped")
	}
	if item := findItem(t, res, "odd"); item.Status != StatusUpcoming {
		t.Errorf("odd Status = %s, want upcoming", item.Status)
	}
}

func TestReconcile_PolicyKnobs(t *testing.T) {
	r := newTestReconciler(Policy{
		PaidThreshold:  decimal.NewFromInt(1),
		DueSoonDays:    7,
		TimelineLength: 5,
	})
	tpl := bill("rent", 10000, core.NewDate(2025, 3, 16))
	res := r.Reconcile(
		[]core.RecurringTemplate{tpl},
		[]core.RealizedTransaction{paidExpense("rent", 9000, core.NewDate(2025, 3, 1))},
		reference,
	)

	item := findItem(t, res, "rent")
	if item.IsPaid {
		t.Error("90 percent should not settle with a 100 percent threshold")
	}
	if item.Status != StatusDueSoon {
		t.Errorf("Status = %s, want due_soon with a 7 day window", item.Status)
	}
	if got := len(res.TimelineItems); got != 5 {
		t.Errorf("timeline has %d entries, want 5", got)
	}
}

func TestNew_ZeroPolicyFieldsUseDefaults(t *testing.T) {
	r := newTestReconciler(Policy{DueSoonDays: 2})
	got := r.Policy()
	if !got.PaidThreshold.Equal(DefaultPolicy().PaidThreshold) {
		t.Errorf("PaidThreshold = %s, want default %s", got.PaidThreshold, DefaultPolicy().PaidThreshold)
	}
	if got.TimelineLength != DefaultPolicy().TimelineLength {
		t.Errorf("TimelineLength = %d, want default %d", got.TimelineLength, DefaultPolicy().TimelineLength)
	}
	if got.DueSoonDays != 2 {
		t.Errorf("DueSoonDays = %d, want the configured 2", got.DueSoonDays)
	}
}
