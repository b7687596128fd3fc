package audit

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/property"
)

// ProcessingStatus tracks how far the side effects of a recorded transition
// got. A transition whose entry is stuck in pending or processing was
// interrupted mid-sequence and is a candidate for billing retry.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// InvoiceOutcome records what happened to invoice generation for a
// transition.
type InvoiceOutcome string

const (
	InvoiceGenerated      InvoiceOutcome = "generated"
	InvoiceAlreadyExisted InvoiceOutcome = "already_existed"
	InvoiceFailed         InvoiceOutcome = "failed"
	InvoiceSkipped        InvoiceOutcome = "skipped"
)

// Metadata is the request snapshot captured with every transition.
type Metadata struct {
	RequestID  string `json:"request_id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	ActorRole  string `json:"actor_role,omitempty"`
}

// ErrorEntry is one failure appended to an entry's error log. The log only
// ever grows; retries append rather than overwrite.
type ErrorEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Entry is one row of a property's status history.
type Entry struct {
	ID                uuid.UUID
	PropertyID        uuid.UUID
	PreviousStatus    property.SalesStatus
	NewStatus         property.SalesStatus
	ChangedBy         uuid.UUID
	ChangeReason      string
	Metadata          Metadata
	SettlementDetails json.RawMessage
	InvoiceID         *uuid.UUID
	InvoiceOutcome    *InvoiceOutcome
	ProcessingStatus  ProcessingStatus
	ErrorLog          []ErrorEntry
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

var ErrNotFound = errors.New("history entry not found")
