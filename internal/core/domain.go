package core

import (
	"strings"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Needs   BucketType = "needs"
	Wants   BucketType = "wants"
	Savings BucketType = "savings"
)

type (
	Frequency       string
	TransactionType string
	BucketType      string

	RecurringTemplate struct {
		ID                string
		OwnerID           string
		Title             string
		Amount            Money
		Type              TransactionType
		Frequency         Frequency
		DayOfMonth        *int          // 1-31, monthly/quarterly/yearly anchor
		DayOfWeek         *time.Weekday // weekly/biweekly anchor
		StartDate         Date
		EndDate           Date // zero when open ended
		NextOccurrence    Date
		LastProcessed     Date // zero until the first occurrence is materialized
		IsActive          bool
		CategoryID        string
		FinancialPriority BucketType // needs or wants, empty when unset
	}

	RealizedTransaction struct {
		ID                  string
		OwnerID             string
		RecurringTemplateID string // empty when not generated from a template
		Type                TransactionType
		Amount              Money
		Date                Date
		IsPaid              bool
		BudgetBucketID      string
		Description         string
	}

	BudgetBucket struct {
		ID          string
		OwnerID     string
		PeriodStart Date
		PeriodEnd   Date
		BucketType  BucketType
		Amount      Money
	}

	// BudgetGoal seeds the initial amount of a bucket. Exactly one of
	// Percentage and TargetAmount is expected to be set.
	BudgetGoal struct {
		ID           string
		OwnerID      string
		BucketType   BucketType
		Percentage   *float64
		TargetAmount *Money
	}
)

var (
	ErrEmptyTitle     = NewValidationError("title", "empty title")
	ErrMissingStart   = NewValidationError("start_date", "start date is required")
	ErrMissingFreq    = NewValidationError("frequency", "frequency is required")
	ErrEndBeforeStart = NewValidationError("end_date", "end date must not be before start date")
)

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (b BucketType) IsValid() bool {
	switch b {
	case Needs, Wants, Savings:
		return true
	default:
		return false
	}
}

// ValidateSchedule checks the fields the scheduler depends on. It does not reject
// unknown frequencies: those degrade to monthly cadence at scheduling time.
func (t RecurringTemplate) ValidateSchedule() error {
	if t.Frequency == "" {
		return ErrMissingFreq
	}
	if t.StartDate.IsZero() {
		return ErrMissingStart
	}
	if !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
		return ErrEndBeforeStart
	}
	if t.DayOfMonth != nil && (*t.DayOfMonth < 1 || *t.DayOfMonth > 31) {
		return NewValidationError("day_of_month", "day of month must be between 1 and 31")
	}
	if t.DayOfWeek != nil && (*t.DayOfWeek < time.Sunday || *t.DayOfWeek > time.Saturday) {
		return NewValidationError("day_of_week", "day of week must be between 0 and 6")
	}
	return nil
}

func (t RecurringTemplate) Validate() error {
	if err := t.ValidateSchedule(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return NewValidationError("title", "title too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return NewValidationError("type", "type must be 'income' or 'expense'")
	}
	if t.FinancialPriority != "" && t.FinancialPriority != Needs && t.FinancialPriority != Wants {
		return NewValidationError("financial_priority", "financial priority must be 'needs' or 'wants'")
	}
	return nil
}

// Priority returns the bucket an expense generated by t is booked against.
func (t RecurringTemplate) Priority() BucketType {
	if t.FinancialPriority == "" {
		return Needs
	}
	return t.FinancialPriority
}

func (tx RealizedTransaction) Validate() error {
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if !tx.Type.IsValid() {
		return NewValidationError("type", "type must be 'income' or 'expense'")
	}
	if tx.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if tx.Type == Expense && tx.BudgetBucketID == "" {
		return NewValidationError("budget_bucket_id", "expense must reference a budget bucket")
	}
	return nil
}

// Settles reports whether the transaction counts toward paying off its
// template: income always does, expenses only once flagged paid.
func (tx RealizedTransaction) Settles() bool {
	if tx.Type == Income {
		return true
	}
	return tx.IsPaid
}

func (b BudgetBucket) Key() BucketKey {
	return BucketKey{
		OwnerID:     b.OwnerID,
		PeriodStart: b.PeriodStart,
		PeriodEnd:   b.PeriodEnd,
		BucketType:  b.BucketType,
	}
}

// BucketKey identifies the single bucket allowed per owner, period and type.
type BucketKey struct {
	OwnerID     string
	PeriodStart Date
	PeriodEnd   Date
	BucketType  BucketType
}

func (k BucketKey) String() string {
	return k.OwnerID + "|" + k.PeriodStart.String() + "|" + k.PeriodEnd.String() + "|" + string(k.BucketType)
}

func (k BucketKey) Validate() error {
	if strings.TrimSpace(k.OwnerID) == "" {
		return NewValidationError("owner_id", "owner is required")
	}
	if k.PeriodStart.IsZero() || k.PeriodEnd.IsZero() {
		return NewValidationError("period", "period bounds are required")
	}
	if k.PeriodEnd.Before(k.PeriodStart) {
		return NewValidationError("period", "period end must not be before period start")
	}
	if !k.BucketType.IsValid() {
		return NewValidationError("bucket_type", "bucket type must be needs, wants or savings")
	}
	return nil
}

var errZeroDate = NewValidationError("date", "date cannot be zero")
