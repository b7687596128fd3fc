package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is where a record sits on the reconciliation dashboard.
type Status string

const (
	StatusAwaiting   Status = "awaiting"
	StatusPartial    Status = "partial"
	StatusReconciled Status = "reconciled"
)

// Record tracks what one invoice is expected to bring in against what has
// actually arrived. One record per invoice; the expected amount is a snapshot
// taken when the invoice is generated.
type Record struct {
	ID               uuid.UUID
	InvoiceID        uuid.UUID
	PropertyID       uuid.UUID
	ExpectedCents    int64
	ReceivedCents    int64
	Status           Status
	MatchedReference string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

var ErrNotFound = errors.New("payment record not found")
