package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/schedule"
	"fintrack/internal/storage"
)

// TemplateService creates and edits recurring templates, stamping their
// NextOccurrence through the shared calculator.
type TemplateService struct {
	store storage.TemplateStore
	calc  *schedule.Calculator
	now   func() time.Time
}

func NewTemplateService(store storage.TemplateStore, calc *schedule.Calculator) *TemplateService {
	return &TemplateService{store: store, calc: calc, now: time.Now}
}

func (s *TemplateService) today() core.Date {
	return core.DateOf(s.now())
}

// Create validates t, stamps its schedule and persists it. New templates are
// active unless they have already run past their end date.
func (s *TemplateService) Create(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsActive = true
	t.LastProcessed = core.Date{}

	stamped, err := s.stamp(t)
	if err != nil {
		return t, err
	}
	if err := s.store.CreateTemplate(ctx, stamped); err != nil {
		return t, fmt.Errorf("save template: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template created",
		"template_id", stamped.ID,
		"owner_id", stamped.OwnerID,
		"frequency", stamped.Frequency,
		"next_occurrence", stamped.NextOccurrence.String())
	return stamped, nil
}

// Update replaces the editable fields of an existing template and re-stamps
// its schedule. Processing history is kept.
func (s *TemplateService) Update(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	existing, err := s.store.GetTemplate(ctx, t.ID)
	if err != nil {
		return t, err
	}
	t.OwnerID = existing.OwnerID
	t.LastProcessed = existing.LastProcessed
	t.IsActive = existing.IsActive

	stamped, err := s.stamp(t)
	if err != nil {
		return t, err
	}
	if err := s.store.UpdateTemplate(ctx, stamped); err != nil {
		return t, fmt.Errorf("update template: %w", err)
	}
	return stamped, nil
}

// SetActive toggles a template. Reactivation re-stamps from today so missed
// periods are not replayed.
func (s *TemplateService) SetActive(ctx context.Context, id string, active bool) (core.RecurringTemplate, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return t, err
	}
	if t.IsActive == active {
		return t, nil
	}
	t.IsActive = active

	if active {
		if !t.LastProcessed.IsZero() {
			// Pretend the last materialized occurrence was the most recent
			// one before today.
			t.LastProcessed = s.calc.PreviousOccurrence(s.nextFrom(t), t.Frequency)
		}
		if t, err = s.stamp(t); err != nil {
			return t, err
		}
	}

	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return t, fmt.Errorf("update template: %w", err)
	}
	slog.InfoContext(ctx, "Recurring template toggled",
		"template_id", t.ID,
		"active", active,
		"next_occurrence", t.NextOccurrence.String())
	return t, nil
}

func (s *TemplateService) nextFrom(t core.RecurringTemplate) core.Date {
	next, ok, err := s.calc.NextOccurrence(t, s.today())
	if err != nil || !ok {
		return t.LastProcessed
	}
	return next
}

func (s *TemplateService) stamp(t core.RecurringTemplate) (core.RecurringTemplate, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	stamped, ok, err := s.calc.Stamp(t, s.today())
	if err != nil {
		return t, err
	}
	if !ok {
		stamped.IsActive = false
	}
	return stamped, nil
}
