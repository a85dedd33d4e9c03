package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/schedule"
	"fintrack/internal/storage"
)

// maxCatchUp bounds how many missed occurrences of one template a single
// pass materializes.
const maxCatchUp = 400

// RecurringProcessorConfig holds configuration for the processing loop.
type RecurringProcessorConfig struct {
	// Interval is how often due templates are checked (default: 1h).
	Interval time.Duration
	// AfterPass runs after every pass with the pass time, e.g. to refresh
	// dashboards. Optional.
	AfterPass func(ctx context.Context, now time.Time)
}

func DefaultRecurringProcessorConfig() RecurringProcessorConfig {
	return RecurringProcessorConfig{Interval: time.Hour}
}

// RecurringProcessor materializes due occurrences of recurring templates into
// realized transactions and advances the templates' stored schedule.
type RecurringProcessor struct {
	templates    storage.TemplateStore
	transactions *TransactionService
	calc         *schedule.Calculator
	config       RecurringProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringProcessor(templates storage.TemplateStore, transactions *TransactionService, calc *schedule.Calculator, config RecurringProcessorConfig) *RecurringProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRecurringProcessorConfig().Interval
	}
	return &RecurringProcessor{
		templates:    templates,
		transactions: transactions,
		calc:         calc,
		config:       config,
	}
}

// ProcessDue materializes every occurrence due on or before now. A template
// that fails is logged and skipped; the others are still processed. It
// returns the number of transactions created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.templates == nil || p.transactions == nil || p.calc == nil {
		return 0, errors.New("processor not properly initialized")
	}

	today := core.DateOf(now)
	due, err := p.templates.ListDueTemplates(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list due templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"due", len(due),
		"processing_date", today.String())

	created := 0
	for _, t := range due {
		n, err := p.processTemplate(ctx, t, today)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring template",
				"template_id", t.ID,
				"title", t.Title,
				"materialized", n,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"created", created,
		"total_checked", len(due))
	return created, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, t core.RecurringTemplate, today core.Date) (int, error) {
	created := 0
	for !t.NextOccurrence.IsZero() && !t.NextOccurrence.After(today) {
		if created >= maxCatchUp {
			slog.WarnContext(ctx, "Catch-up limit reached, resuming next pass",
				"template_id", t.ID,
				"next_occurrence", t.NextOccurrence.String())
			break
		}
		if err := ctx.Err(); err != nil {
			return created, err
		}

		occurrence := t.NextOccurrence
		tx := core.RealizedTransaction{
			ID:                  uuid.NewString(),
			OwnerID:             t.OwnerID,
			RecurringTemplateID: t.ID,
			Type:                t.Type,
			Amount:              t.Amount,
			Date:                occurrence,
			IsPaid:              true,
			Description:         t.Title,
		}
		if _, err := p.transactions.Record(ctx, tx, t.Priority()); err != nil {
			return created, fmt.Errorf("materialize %s: %w", occurrence, err)
		}
		created++

		next, ok, err := p.calc.NextAfter(t, occurrence)
		if err != nil {
			return created, fmt.Errorf("next occurrence after %s: %w", occurrence, err)
		}
		if !ok {
			next = core.Date{}
		}
		if err := p.templates.AdvanceTemplate(ctx, t.ID, occurrence, next); err != nil {
			return created, fmt.Errorf("advance schedule: %w", err)
		}
		t.LastProcessed, t.NextOccurrence = occurrence, next

		slog.InfoContext(ctx, "Created transaction from recurring template",
			"template_id", t.ID,
			"date", occurrence.String(),
			"amount_cents", t.Amount.Cents,
			"frequency", t.Frequency,
			"next_occurrence", next.String())
	}
	return created, nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *RecurringProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("recurring processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Recurring processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (p *RecurringProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring processor stop timed out")
		return ctx.Err()
	}
}

func (p *RecurringProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RecurringProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Process immediately on startup
	p.pass(ctx, time.Now())

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.pass(ctx, now)
		}
	}
}

func (p *RecurringProcessor) pass(ctx context.Context, now time.Time) {
	if _, err := p.ProcessDue(ctx, now); err != nil {
		slog.ErrorContext(ctx, "Failed to process recurring templates", "error", err)
	}
	if p.config.AfterPass != nil {
		p.config.AfterPass(ctx, now)
	}
}
