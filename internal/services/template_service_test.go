package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestTemplateService_Create(t *testing.T) {
	today := core.NewDate(2025, 3, 10)

	tests := []struct {
		name       string
		start      core.Date
		end        core.Date
		wantNext   core.Date
		wantActive bool
	}{
		{"future start is first occurrence", core.NewDate(2025, 3, 20), core.Date{}, core.NewDate(2025, 3, 20), true},
		{"start today", today, core.Date{}, today, true},
		{"past start rolls forward", core.NewDate(2025, 1, 5), core.Date{}, core.NewDate(2025, 4, 5), true},
		{"already ended", core.NewDate(2024, 1, 5), core.NewDate(2024, 6, 30), core.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, today)
			tpl := expenseTemplate("Rent", tt.start)
			tpl.EndDate = tt.end

			got, err := f.templates.Create(context.Background(), tpl)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if got.ID == "" {
				t.Error("Create() should assign an id")
			}
			if !got.NextOccurrence.Equal(tt.wantNext) {
				t.Errorf("NextOccurrence = %s, want %s", got.NextOccurrence, tt.wantNext)
			}
			if got.IsActive != tt.wantActive {
				t.Errorf("IsActive = %v, want %v", got.IsActive, tt.wantActive)
			}

			stored, err := f.store.GetTemplate(context.Background(), got.ID)
			if err != nil {
				t.Fatalf("GetTemplate() error = %v", err)
			}
			if !stored.NextOccurrence.Equal(tt.wantNext) {
				t.Errorf("stored NextOccurrence = %s, want %s", stored.NextOccurrence, tt.wantNext)
			}
		})
	}
}

func TestTemplateService_CreateRejectsInvalid(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 10))

	tests := []struct {
		name   string
		mutate func(*core.RecurringTemplate)
	}{
		{"empty title", func(t *core.RecurringTemplate) { t.Title = "  " }},
		{"missing start", func(t *core.RecurringTemplate) { t.StartDate = core.Date{} }},
		{"end before start", func(t *core.RecurringTemplate) { t.EndDate = core.NewDate(2024, 1, 1) }},
		{"bad type", func(t *core.RecurringTemplate) { t.Type = "transfer" }},
		{"savings priority", func(t *core.RecurringTemplate) { t.FinancialPriority = core.Savings }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := expenseTemplate("Rent", core.NewDate(2025, 3, 1))
			tt.mutate(&tpl)
			if _, err := f.templates.Create(context.Background(), tpl); !core.IsValidationError(err) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}

	if got, _ := f.store.ListTemplates(context.Background(), "u1"); len(got) != 0 {
		t.Errorf("invalid templates were persisted: %d", len(got))
	}
}

func TestTemplateService_UpdateKeepsHistory(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 10))
	ctx := context.Background()
	tpl := f.create(t, expenseTemplate("Rent", core.NewDate(2025, 1, 10)))

	if _, err := f.processor.ProcessDue(ctx, core.NewDate(2025, 1, 10).Time); err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}

	stored, _ := f.store.GetTemplate(ctx, tpl.ID)
	day := 20
	stored.DayOfMonth = &day
	stored.Amount = core.Money{Cents: 12000}
	stored.OwnerID = "someone-else"

	got, err := f.templates.Update(ctx, stored)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.OwnerID != "u1" {
		t.Errorf("OwnerID = %q, want unchanged", got.OwnerID)
	}
	if !got.LastProcessed.Equal(core.NewDate(2025, 1, 10)) {
		t.Errorf("LastProcessed = %s, want 2025-01-10", got.LastProcessed)
	}
	if want := core.NewDate(2025, 2, 20); !got.NextOccurrence.Equal(want) {
		t.Errorf("NextOccurrence = %s, want %s", got.NextOccurrence, want)
	}
}

func TestTemplateService_UpdateMissing(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 10))
	tpl := expenseTemplate("Rent", core.NewDate(2025, 1, 10))
	tpl.ID = "missing"
	if _, err := f.templates.Update(context.Background(), tpl); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestTemplateService_ReactivationSkipsMissedPeriods(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 10))
	ctx := context.Background()
	tpl := f.create(t, expenseTemplate("Gym", core.NewDate(2025, 1, 10)))

	if _, err := f.processor.ProcessDue(ctx, core.NewDate(2025, 1, 10).Time); err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	paused, err := f.templates.SetActive(ctx, tpl.ID, false)
	if err != nil {
		t.Fatalf("SetActive(false) error = %v", err)
	}
	if paused.IsActive {
		t.Fatal("template should be inactive")
	}

	// Nothing is materialized while paused.
	if n, _ := f.processor.ProcessDue(ctx, core.NewDate(2025, 5, 20).Time); n != 0 {
		t.Errorf("ProcessDue() while paused = %d, want 0", n)
	}

	f.templates.now = func() time.Time { return core.NewDate(2025, 5, 20).Time }
	resumed, err := f.templates.SetActive(ctx, tpl.ID, true)
	if err != nil {
		t.Fatalf("SetActive(true) error = %v", err)
	}
	if !resumed.LastProcessed.Equal(core.NewDate(2025, 5, 10)) {
		t.Errorf("LastProcessed = %s, want 2025-05-10", resumed.LastProcessed)
	}
	if !resumed.NextOccurrence.Equal(core.NewDate(2025, 6, 10)) {
		t.Errorf("NextOccurrence = %s, want 2025-06-10", resumed.NextOccurrence)
	}

	if n, _ := f.processor.ProcessDue(ctx, core.NewDate(2025, 5, 20).Time); n != 0 {
		t.Errorf("ProcessDue() after resume = %d, want 0", n)
	}
	if got := f.transactionsFor(t, tpl.ID); len(got) != 1 {
		t.Errorf("transactions = %d, want only the January one", len(got))
	}
}

func TestTemplateService_SetActiveNoop(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 1, 10))
	tpl := f.create(t, expenseTemplate("Gym", core.NewDate(2025, 1, 10)))

	got, err := f.templates.SetActive(context.Background(), tpl.ID, true)
	if err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if !got.NextOccurrence.Equal(tpl.NextOccurrence) {
		t.Errorf("NextOccurrence changed to %s", got.NextOccurrence)
	}

	if _, err := f.templates.SetActive(context.Background(), "missing", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetActive(missing) error = %v, want ErrNotFound", err)
	}
}
