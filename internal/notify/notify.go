package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a notification is about.
type Kind string

const (
	KindStatusChange     Kind = "status_change"
	KindInvoiceGenerated Kind = "invoice_generated"
	KindSystemAlert      Kind = "system_alert"
)

// Status is the delivery state of a queued notification.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusDead      Status = "dead"
)

// Notification is one queued delivery. Rows survive process restarts; a
// notification is only gone from the queue once delivered or dead.
type Notification struct {
	ID            uuid.UUID
	RecipientID   uuid.UUID
	Kind          Kind
	Payload       json.RawMessage
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}

// Message is the rendered form handed to sinks. Invoice notifications are
// re-read from the ledger at delivery time, so the payload here is always
// current even when the queue lagged.
type Message struct {
	ID          uuid.UUID       `json:"id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StatusChangePayload notifies a property owner that their sale moved.
type StatusChangePayload struct {
	PropertyID     uuid.UUID `json:"property_id"`
	Address        string    `json:"address"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status"`
	ChangedBy      string    `json:"changed_by"`
	ChangeReason   string    `json:"change_reason,omitempty"`
}

// InvoiceGeneratedPayload is stored with just the invoice reference; the
// full details are filled in at delivery.
type InvoiceGeneratedPayload struct {
	InvoiceID       uuid.UUID `json:"invoice_id"`
	InvoiceNumber   string    `json:"invoice_number,omitempty"`
	Category        string    `json:"category,omitempty"`
	TotalCents      int64     `json:"total_cents,omitempty"`
	AmountDueCents  int64     `json:"amount_due_cents,omitempty"`
	DueAt           string    `json:"due_at,omitempty"`
	PropertyID      string    `json:"property_id,omitempty"`
	PropertyAddress string    `json:"property_address,omitempty"`
}

// SystemAlertPayload goes to administrators when billing needs a human.
type SystemAlertPayload struct {
	Subject    string     `json:"subject"`
	Detail     string     `json:"detail"`
	PropertyID *uuid.UUID `json:"property_id,omitempty"`
}
