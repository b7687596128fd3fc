package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category identifies what an invoice bills for.
type Category string

const (
	CategorySettlementCommission Category = "settlement_commission"
	CategoryPlatformCommission   Category = "platform_commission"
	CategoryBuyerPayment         Category = "buyer_payment"
	CategoryOther                Category = "other"
)

// Status represents the lifecycle state of an invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusViewed    Status = "viewed"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// CounterpartyRole says which side of the sale the billed party is on.
type CounterpartyRole string

const (
	CounterpartySeller CounterpartyRole = "seller"
	CounterpartyBuyer  CounterpartyRole = "buyer"
)

// Invoice represents a bill raised against a sale. Amounts are in cents.
type Invoice struct {
	ID                 uuid.UUID
	Number             string
	Category           Category
	Status             Status
	PropertyID         uuid.UUID
	AgentID            *uuid.UUID
	CounterpartyID     uuid.UUID
	CounterpartyRole   CounterpartyRole
	PropertyValueCents int64
	CommissionRate     decimal.Decimal
	CommissionCents    int64
	GSTCents           int64
	TotalCents         int64
	AmountPaidCents    int64
	IssuedAt           time.Time
	DueAt              time.Time
	Payments           []Payment // Loaded via second query
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}

// AmountDueCents returns the unpaid remainder. Never negative; overpayments
// report zero due.
func (i *Invoice) AmountDueCents() int64 {
	due := i.TotalCents - i.AmountPaidCents
	if due < 0 {
		return 0
	}

	return due
}

// Payment is a receipt applied against an invoice.
type Payment struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	AmountCents int64
	Method      string
	Reference   string
	ReceivedAt  time.Time
	CreatedAt   time.Time
}

var (
	ErrNotFound = errors.New("invoice not found")

	// ErrDuplicate reports that an active invoice already exists for the
	// same property, counterparty and category.
	ErrDuplicate = errors.New("duplicate invoice")

	ErrCancelled = errors.New("invoice is cancelled")

	ErrPaid = errors.New("invoice is already paid")
)
