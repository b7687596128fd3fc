package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=invoice
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)
	FindActiveByKey(ctx context.Context, propertyID, counterpartyID uuid.UUID, category Category) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	AddPayment(ctx context.Context, payment *Payment) (*Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type ListFilter struct {
	PropertyID *uuid.UUID
	Status     *Status
	Category   *Category
	// PartyID restricts results to invoices the user is a party to, either
	// as counterparty or as billing agent.
	PartyID *uuid.UUID
	Overdue bool
}

// GetOrCreateParams identifies and prices one invoice. The idempotency key
// is (PropertyID, CounterpartyID, Category).
type GetOrCreateParams struct {
	Category           Category
	PropertyID         uuid.UUID
	PropertyValueCents int64
	CounterpartyID     uuid.UUID
	CounterpartyRole   CounterpartyRole
	AgentID            *uuid.UUID
	SettlementDate     time.Time
}

// GetOrCreate returns the active invoice for the key, creating it when none
// exists. The second return value reports whether the invoice already
// existed. Cancelled invoices never satisfy the key, so a sale whose billing
// was cancelled can be re-invoiced.
//
// Two concurrent callers can both miss the lookup; the database's uniqueness
// backstop rejects the loser, which then re-reads the winner's row. Either
// way exactly one active invoice survives.
func (s *Service) GetOrCreate(ctx context.Context, params GetOrCreateParams) (*Invoice, bool, error) {
	existing, err := s.repo.FindActiveByKey(ctx, params.PropertyID, params.CounterpartyID, params.Category)
	if err == nil {
		return existing, true, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("looking up invoice: %w", err)
	}

	breakdown, err := Calculate(params.Category, params.PropertyValueCents)
	if err != nil {
		return nil, false, err
	}

	inv := &Invoice{
		Category:           params.Category,
		Status:             StatusPending,
		PropertyID:         params.PropertyID,
		AgentID:            params.AgentID,
		CounterpartyID:     params.CounterpartyID,
		CounterpartyRole:   params.CounterpartyRole,
		PropertyValueCents: params.PropertyValueCents,
		CommissionRate:     breakdown.Rate,
		CommissionCents:    breakdown.CommissionCents,
		GSTCents:           breakdown.GSTCents,
		TotalCents:         breakdown.TotalCents,
		IssuedAt:           params.SettlementDate,
		DueAt:              DueDate(params.Category, params.SettlementDate),
	}

	err = s.repo.CreateInvoice(ctx, inv)
	if errors.Is(err, ErrDuplicate) {
		winner, findErr := s.repo.FindActiveByKey(ctx, params.PropertyID, params.CounterpartyID, params.Category)
		if findErr != nil {
			return nil, false, fmt.Errorf("re-reading invoice after duplicate: %w", findErr)
		}

		return winner, true, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("creating invoice: %w", err)
	}

	return inv, false, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	return s.repo.GetInvoiceByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

type RecordPaymentParams struct {
	InvoiceID   uuid.UUID
	AmountCents int64
	Method      string
	Reference   string
	ReceivedAt  time.Time
}

// RecordPayment applies a receipt to an invoice. The invoice flips to paid
// once cumulative receipts cover the total.
func (s *Service) RecordPayment(ctx context.Context, params RecordPaymentParams) (*Invoice, error) {
	if params.AmountCents <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", params.AmountCents)
	}

	inv, err := s.repo.GetInvoice(ctx, params.InvoiceID)
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusCancelled {
		return nil, ErrCancelled
	}

	receivedAt := params.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return s.repo.AddPayment(ctx, &Payment{
		InvoiceID:   params.InvoiceID,
		AmountCents: params.AmountCents,
		Method:      params.Method,
		Reference:   params.Reference,
		ReceivedAt:  receivedAt,
	})
}

// Cancel voids an invoice. A cancelled invoice keeps its number but no
// longer blocks re-invoicing the same sale.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}

	if inv.Status == StatusPaid {
		return fmt.Errorf("%w: %s", ErrPaid, inv.Number)
	}

	return s.repo.UpdateStatus(ctx, id, StatusCancelled)
}
