package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/payment"
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

const selectRecordColumns = `
	id, invoice_id, property_id, expected_cents, received_cents,
	status, matched_reference, created_at, updated_at
`

func scanRecord(s scanner) (*payment.Record, error) {
	var rec payment.Record

	var statusStr string

	if err := s.Scan(
		&rec.ID, &rec.InvoiceID, &rec.PropertyID, &rec.ExpectedCents, &rec.ReceivedCents,
		&statusStr, &rec.MatchedReference, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, payment.ErrNotFound
		}

		return nil, err
	}

	rec.Status = payment.Status(statusStr)

	return &rec, nil
}

// CreateRecord inserts the expected-payment snapshot for an invoice. An
// existing record for the invoice is left untouched.
func (s *Store) CreateRecord(ctx context.Context, rec *payment.Record) error {
	query := `
		INSERT INTO payment_records (invoice_id, property_id, expected_cents, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (invoice_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, rec.InvoiceID, rec.PropertyID, rec.ExpectedCents, rec.Status); err != nil {
		return fmt.Errorf("inserting payment record: %w", err)
	}

	return nil
}

func (s *Store) GetRecordByInvoice(ctx context.Context, invoiceID uuid.UUID) (*payment.Record, error) {
	query := `SELECT ` + selectRecordColumns + ` FROM payment_records WHERE invoice_id = $1`

	return scanRecord(s.db.QueryRowContext(ctx, query, invoiceID))
}

// ApplyReceipt rolls a received amount into the record and moves its status
// along: partial until receipts cover the expected amount, reconciled after.
func (s *Store) ApplyReceipt(ctx context.Context, invoiceID uuid.UUID, amountCents int64, reference string) (*payment.Record, error) {
	query := `
		UPDATE payment_records
		SET received_cents = received_cents + $2,
		    status = CASE
		        WHEN received_cents + $2 >= expected_cents THEN 'reconciled'
		        ELSE 'partial'
		    END,
		    matched_reference = $3,
		    updated_at = NOW()
		WHERE invoice_id = $1
		RETURNING ` + selectRecordColumns

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, invoiceID, amountCents, reference))
	if err != nil {
		if err == payment.ErrNotFound {
			return nil, payment.ErrNotFound
		}

		return nil, fmt.Errorf("applying receipt: %w", err)
	}

	return rec, nil
}

func (s *Store) ListRecords(ctx context.Context, filter payment.ListFilter) ([]*payment.Record, error) {
	query := `SELECT ` + selectRecordColumns + ` FROM payment_records WHERE 1=1`

	args := []any{}
	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.PropertyID != nil {
		query += fmt.Sprintf(" AND property_id = $%d", argIdx)
		args = append(args, *filter.PropertyID)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payment records: %w", err)
	}
	defer rows.Close()

	var records []*payment.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment record: %w", err)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}
