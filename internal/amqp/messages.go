package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/reconcile"
)

// NotificationMessage is the wire form of a notify.Notification. Amounts
// travel as cents and dates as YYYY-MM-DD so consumers need no decimal or
// date library of their own.
type NotificationMessage struct {
	TemplateID   string    `json:"template_id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	AmountCents  int64     `json:"amount_cents"`
	Status       string    `json:"status"`
	DueDate      core.Date `json:"due_date"`
	DaysUntilDue int       `json:"days_until_due"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewNotificationMessage(n notify.Notification) *NotificationMessage {
	return &NotificationMessage{
		TemplateID:   n.TemplateID,
		OwnerID:      n.OwnerID,
		Title:        n.Title,
		Type:         string(n.Type),
		AmountCents:  n.Amount.Cents,
		Status:       string(n.Status),
		DueDate:      n.DueDate,
		DaysUntilDue: n.DaysUntilDue,
		Timestamp:    time.Now(),
	}
}

// Notification converts the message back into the domain form.
func (m *NotificationMessage) Notification() notify.Notification {
	return notify.Notification{
		TemplateID:   m.TemplateID,
		OwnerID:      m.OwnerID,
		Title:        m.Title,
		Type:         core.TransactionType(m.Type),
		Amount:       core.Money{Cents: m.AmountCents},
		Status:       reconcile.Status(m.Status),
		DueDate:      m.DueDate,
		DaysUntilDue: m.DaysUntilDue,
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TemplateID == "" {
		return nil, core.NewValidationError("template_id", "missing template id")
	}
	return &msg, nil
}
