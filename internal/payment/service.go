package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/invoice"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=payment
type Repository interface {
	CreateRecord(ctx context.Context, rec *Record) error
	GetRecordByInvoice(ctx context.Context, invoiceID uuid.UUID) (*Record, error)
	ApplyReceipt(ctx context.Context, invoiceID uuid.UUID, amountCents int64, reference string) (*Record, error)
	ListRecords(ctx context.Context, filter ListFilter) ([]*Record, error)
}

// Ledger is the slice of the invoice service reconciliation needs.
type Ledger interface {
	GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error)
	RecordPayment(ctx context.Context, params invoice.RecordPaymentParams) (*invoice.Invoice, error)
}

type Service struct {
	repo   Repository
	ledger Ledger
}

func NewService(repo Repository, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

type ListFilter struct {
	Status     *Status
	PropertyID *uuid.UUID
}

// EnsureForInvoice snapshots the expected amount for an invoice. Creating the
// record twice is a no-op; the first snapshot wins.
func (s *Service) EnsureForInvoice(ctx context.Context, inv *invoice.Invoice) error {
	err := s.repo.CreateRecord(ctx, &Record{
		InvoiceID:     inv.ID,
		PropertyID:    inv.PropertyID,
		ExpectedCents: inv.TotalCents,
		Status:        StatusAwaiting,
	})
	if err != nil {
		return fmt.Errorf("creating payment record: %w", err)
	}

	return nil
}

// NoteReceipt mirrors a receipt recorded directly on an invoice onto its
// reconciliation record, creating the record when the invoice predates
// payment tracking.
func (s *Service) NoteReceipt(ctx context.Context, inv *invoice.Invoice, amountCents int64, reference string) (*Record, error) {
	if err := s.EnsureForInvoice(ctx, inv); err != nil {
		return nil, err
	}

	return s.repo.ApplyReceipt(ctx, inv.ID, amountCents, reference)
}

func (s *Service) ByInvoice(ctx context.Context, invoiceID uuid.UUID) (*Record, error) {
	return s.repo.GetRecordByInvoice(ctx, invoiceID)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	return s.repo.ListRecords(ctx, filter)
}

// ReceiptLine is one row of a remittance feed: money that arrived carrying a
// reference naming the invoice it pays.
type ReceiptLine struct {
	Reference   string
	AmountCents int64
	ReceivedAt  time.Time
	Detail      string
}

// MatchedLine is a receipt that found its invoice and was applied.
type MatchedLine struct {
	Reference     string         `json:"reference"`
	InvoiceID     uuid.UUID      `json:"invoice_id"`
	AmountCents   int64          `json:"amount_cents"`
	InvoiceStatus invoice.Status `json:"invoice_status"`
	RecordStatus  Status         `json:"record_status"`
}

// UnmatchedLine is a receipt nothing could be done with. It is reported back
// for manual follow-up; nothing is persisted.
type UnmatchedLine struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

// Report summarizes one reconciliation run.
type Report struct {
	Matched   []MatchedLine   `json:"matched"`
	Unmatched []UnmatchedLine `json:"unmatched"`
}

// Reconcile applies remittance lines to the ledger by invoice number. Each
// matched line records a payment on the invoice and rolls the receipt into
// the invoice's payment record. Database failures abort the run; a line that
// simply cannot be matched does not.
func (s *Service) Reconcile(ctx context.Context, lines []ReceiptLine) (*Report, error) {
	report := &Report{
		Matched:   []MatchedLine{},
		Unmatched: []UnmatchedLine{},
	}

	for _, line := range lines {
		if line.Reference == "" {
			report.Unmatched = append(report.Unmatched, UnmatchedLine{
				AmountCents: line.AmountCents,
				Reason:      "no invoice reference",
			})

			continue
		}

		inv, err := s.ledger.GetByNumber(ctx, line.Reference)
		if errors.Is(err, invoice.ErrNotFound) {
			report.Unmatched = append(report.Unmatched, UnmatchedLine{
				Reference:   line.Reference,
				AmountCents: line.AmountCents,
				Reason:      "no invoice with this number",
			})

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("looking up invoice %q: %w", line.Reference, err)
		}

		updated, err := s.ledger.RecordPayment(ctx, invoice.RecordPaymentParams{
			InvoiceID:   inv.ID,
			AmountCents: line.AmountCents,
			Method:      "bank_transfer",
			Reference:   line.Reference,
			ReceivedAt:  line.ReceivedAt,
		})
		if err != nil {
			report.Unmatched = append(report.Unmatched, UnmatchedLine{
				Reference:   line.Reference,
				AmountCents: line.AmountCents,
				Reason:      err.Error(),
			})

			continue
		}

		// Invoices generated before payment tracking have no record yet.
		if err := s.EnsureForInvoice(ctx, inv); err != nil {
			slog.Warn("ensuring payment record during reconciliation", "invoice", inv.Number, "error", err)
		}

		rec, err := s.repo.ApplyReceipt(ctx, inv.ID, line.AmountCents, line.Reference)
		if err != nil {
			return nil, fmt.Errorf("applying receipt to record for %q: %w", line.Reference, err)
		}

		report.Matched = append(report.Matched, MatchedLine{
			Reference:     line.Reference,
			InvoiceID:     inv.ID,
			AmountCents:   line.AmountCents,
			InvoiceStatus: updated.Status,
			RecordStatus:  rec.Status,
		})
	}

	return report, nil
}
