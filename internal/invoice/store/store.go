package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/onlyif-au/onlyif/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectInvoiceColumns = `
	id, invoice_number, category, status, property_id, agent_id,
	counterparty_id, counterparty_role, property_value_cents, commission_rate,
	commission_cents, gst_cents, total_cents, amount_paid_cents,
	issued_at, due_at, created_at, updated_at
`

func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var categoryStr, statusStr, roleStr string

	if err := s.Scan(
		&inv.ID, &inv.Number, &categoryStr, &statusStr, &inv.PropertyID, &inv.AgentID,
		&inv.CounterpartyID, &roleStr, &inv.PropertyValueCents, &inv.CommissionRate,
		&inv.CommissionCents, &inv.GSTCents, &inv.TotalCents, &inv.AmountPaidCents,
		&inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Category = invoice.Category(categoryStr)
	inv.Status = invoice.Status(statusStr)
	inv.CounterpartyRole = invoice.CounterpartyRole(roleStr)

	return &inv, nil
}

// numberLockKey serializes invoice numbering within one calendar year.
func numberLockKey(year int) int64 {
	h := fnv.New64a()
	h.Write([]byte("invoice_number"))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(year)))

	return int64(h.Sum64())
}

// invoiceNumber renders the nth invoice number for a year, 1-based.
func invoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%05d", year, seq)
}

// CreateInvoice inserts the invoice, assigning the next sequential number
// for the current year. Numbering and insert share one transaction under a
// per-year advisory lock, so concurrent settlements cannot mint the same
// number. A unique-key violation on the idempotency index surfaces as
// invoice.ErrDuplicate.
func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	year := time.Now().UTC().Year()
	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", numberLockKey(year)); err != nil {
		return fmt.Errorf("acquiring numbering lock: %w", err)
	}

	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	var issued int
	countQuery := `
		SELECT COUNT(*) FROM invoices
		WHERE created_at >= $1 AND created_at < $2
	`
	if err := dbTx.QueryRowContext(ctx, countQuery, yearStart, yearStart.AddDate(1, 0, 0)).Scan(&issued); err != nil {
		return fmt.Errorf("counting invoices for year: %w", err)
	}

	inv.Number = invoiceNumber(year, issued+1)

	insertQuery := `
		INSERT INTO invoices (
			invoice_number, category, status, property_id, agent_id,
			counterparty_id, counterparty_role, property_value_cents, commission_rate,
			commission_cents, gst_cents, total_cents, issued_at, due_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = dbTx.QueryRowContext(ctx, insertQuery,
		inv.Number,
		inv.Category,
		inv.Status,
		inv.PropertyID,
		inv.AgentID,
		inv.CounterpartyID,
		inv.CounterpartyRole,
		inv.PropertyValueCents,
		inv.CommissionRate,
		inv.CommissionCents,
		inv.GSTCents,
		inv.TotalCents,
		inv.IssuedAt,
		inv.DueAt,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isIdempotencyViolation(err) {
			return invoice.ErrDuplicate
		}

		return fmt.Errorf("inserting invoice: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func isIdempotencyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "23505" && pgErr.ConstraintName == "invoices_idempotency_key"
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	if err := s.loadPayments(ctx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE invoice_number = $1`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice by number: %w", err)
	}

	if err := s.loadPayments(ctx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// FindActiveByKey returns the non-cancelled invoice for the idempotency key,
// or invoice.ErrNotFound.
func (s *Store) FindActiveByKey(ctx context.Context, propertyID, counterpartyID uuid.UUID, category invoice.Category) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices
		WHERE property_id = $1 AND counterparty_id = $2 AND category = $3 AND status <> 'cancelled'`

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, propertyID, counterpartyID, category))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("finding invoice by key: %w", err)
	}

	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.PropertyID != nil {
		query += fmt.Sprintf(" AND property_id = $%d", argIdx)

		args = append(args, *filter.PropertyID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argIdx)

		args = append(args, *filter.Category)
		argIdx++
	}

	if filter.PartyID != nil {
		query += fmt.Sprintf(" AND (counterparty_id = $%d OR agent_id = $%d)", argIdx, argIdx)

		args = append(args, *filter.PartyID)
		argIdx++
	}

	if filter.Overdue {
		query += " AND status NOT IN ('paid', 'cancelled') AND due_at < NOW()"
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invs = append(invs, inv)
	}

	return invs, nil
}

// AddPayment records a receipt and updates the invoice's paid total in one
// transaction. The invoice flips to paid when receipts cover the total.
func (s *Store) AddPayment(ctx context.Context, payment *invoice.Payment) (*invoice.Invoice, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertQuery := `
		INSERT INTO invoice_payments (invoice_id, amount_cents, method, reference, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err = dbTx.QueryRowContext(ctx, insertQuery,
		payment.InvoiceID,
		payment.AmountCents,
		payment.Method,
		payment.Reference,
		payment.ReceivedAt,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting payment: %w", err)
	}

	updateQuery := `
		UPDATE invoices
		SET amount_paid_cents = amount_paid_cents + $1,
			status = CASE
				WHEN amount_paid_cents + $1 >= total_cents THEN 'paid'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $2
	`
	if _, err := dbTx.ExecContext(ctx, updateQuery, payment.AmountCents, payment.InvoiceID); err != nil {
		return nil, fmt.Errorf("applying payment to invoice: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return s.GetInvoice(ctx, payment.InvoiceID)
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status invoice.Status) error {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating invoice status: %w", err)
	}

	return nil
}

func (s *Store) loadPayments(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		SELECT id, invoice_id, amount_cents, method, reference, received_at, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY received_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, inv.ID)
	if err != nil {
		return fmt.Errorf("loading payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p invoice.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &p.Method, &p.Reference, &p.ReceivedAt, &p.CreatedAt); err != nil {
			return fmt.Errorf("scanning payment: %w", err)
		}

		inv.Payments = append(inv.Payments, p)
	}

	return rows.Err()
}
