package log

import "fintrack/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldTemplateID  = "template_id"
	FieldTitle       = "title"
	FieldFrequency   = "frequency"
	FieldAmountCents = "amount_cents"
	FieldDate        = "date"
	FieldNext        = "next_occurrence"
	FieldBucketID    = "bucket_id"
	FieldBucketType  = "bucket_type"
	FieldPeriod      = "period"
	FieldStatus      = "status"
	FieldCount       = "count"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentWorker    = "worker"
	ComponentProcessor = "processor"
	ComponentSchedule  = "schedule"
	ComponentBudget    = "budget"
	ComponentReconcile = "reconcile"
	ComponentNotify    = "notify"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpProcess   = "process"
	OpReconcile = "reconcile"
	OpAllocate  = "allocate"
	OpNotify    = "notify"
	OpMigrate   = "migrate"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error message, skipping nil.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithTemplate adds the identifying fields of a recurring template.
func (f LogFields) WithTemplate(t core.RecurringTemplate) LogFields {
	f[FieldTemplateID] = t.ID
	f[FieldOwnerID] = t.OwnerID
	f[FieldTitle] = t.Title
	f[FieldFrequency] = string(t.Frequency)
	f[FieldAmountCents] = t.Amount.Cents
	if !t.NextOccurrence.IsZero() {
		f[FieldNext] = t.NextOccurrence.String()
	}
	return f
}

func (f LogFields) WithBucket(b core.BudgetBucket) LogFields {
	f[FieldBucketID] = b.ID
	f[FieldOwnerID] = b.OwnerID
	f[FieldBucketType] = string(b.BucketType)
	f[FieldPeriod] = b.PeriodStart.String() + ".." + b.PeriodEnd.String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
