package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/property"
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

const selectEntryColumns = `
	id, property_id, previous_status, new_status, changed_by, change_reason,
	metadata, settlement_details, invoice_id, invoice_outcome,
	processing_status, error_log, created_at, updated_at
`

func scanEntry(s scanner) (*audit.Entry, error) {
	var entry audit.Entry

	var previous sql.NullString

	var outcome sql.NullString

	var statusStr string

	var metadataRaw, errorLogRaw []byte

	if err := s.Scan(
		&entry.ID, &entry.PropertyID, &previous, &entry.NewStatus, &entry.ChangedBy, &entry.ChangeReason,
		&metadataRaw, &entry.SettlementDetails, &entry.InvoiceID, &outcome,
		&statusStr, &errorLogRaw, &entry.CreatedAt, &entry.UpdatedAt,
	); err != nil {
		return nil, err
	}

	entry.PreviousStatus = property.SalesStatus(previous.String)
	entry.ProcessingStatus = audit.ProcessingStatus(statusStr)

	if outcome.Valid {
		entry.InvoiceOutcome = new(audit.InvoiceOutcome(outcome.String))
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decoding entry metadata: %w", err)
		}
	}

	if len(errorLogRaw) > 0 {
		if err := json.Unmarshal(errorLogRaw, &entry.ErrorLog); err != nil {
			return nil, fmt.Errorf("decoding entry error log: %w", err)
		}
	}

	return &entry, nil
}

func (s *Store) CreateEntry(ctx context.Context, entry *audit.Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encoding entry metadata: %w", err)
	}

	settlement := entry.SettlementDetails
	if len(settlement) == 0 {
		settlement = nil
	}

	// NULLIF maps the zero previous status back to SQL NULL: no sale had
	// started before this entry.
	query := `
		INSERT INTO property_status_history (
			property_id, previous_status, new_status, changed_by, change_reason,
			metadata, settlement_details, processing_status, created_at, updated_at
		)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		entry.PropertyID,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.ChangedBy,
		entry.ChangeReason,
		metadata,
		settlement,
		entry.ProcessingStatus,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating history entry: %w", err)
	}

	return nil
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*audit.Entry, error) {
	query := `SELECT ` + selectEntryColumns + ` FROM property_status_history WHERE id = $1`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, audit.ErrNotFound
		}

		return nil, fmt.Errorf("getting history entry: %w", err)
	}

	return entry, nil
}

// SetOutcome updates the entry's processing marker. Nil invoiceID and
// outcome leave the stored values untouched, so a failure marked after a
// partial success keeps the invoice reference it already earned.
func (s *Store) SetOutcome(ctx context.Context, id uuid.UUID, status audit.ProcessingStatus, invoiceID *uuid.UUID, outcome *audit.InvoiceOutcome) error {
	query := `
		UPDATE property_status_history
		SET processing_status = $1,
			invoice_id = COALESCE($2, invoice_id),
			invoice_outcome = COALESCE($3, invoice_outcome),
			updated_at = NOW()
		WHERE id = $4
	`

	_, err := s.db.ExecContext(ctx, query, status, invoiceID, outcome, id)
	if err != nil {
		return fmt.Errorf("setting entry outcome: %w", err)
	}

	return nil
}

// AppendError adds one failure to the entry's error log. The existing log is
// never replaced.
func (s *Store) AppendError(ctx context.Context, id uuid.UUID, errEntry audit.ErrorEntry) error {
	encoded, err := json.Marshal(errEntry)
	if err != nil {
		return fmt.Errorf("encoding error entry: %w", err)
	}

	query := `
		UPDATE property_status_history
		SET error_log = error_log || $1::jsonb, updated_at = NOW()
		WHERE id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, encoded, id); err != nil {
		return fmt.Errorf("appending to error log: %w", err)
	}

	return nil
}

func (s *Store) ListEntriesByProperty(ctx context.Context, propertyID uuid.UUID) ([]*audit.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM property_status_history
		WHERE property_id = $1
		ORDER BY created_at DESC`

	return s.queryEntries(ctx, query, propertyID)
}

func (s *Store) ListStaleEntries(ctx context.Context, olderThan time.Time) ([]*audit.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM property_status_history
		WHERE processing_status IN ('pending', 'processing') AND created_at < $1
		ORDER BY created_at ASC`

	return s.queryEntries(ctx, query, olderThan)
}

func (s *Store) ListAttentionEntries(ctx context.Context, olderThan time.Time) ([]*audit.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM property_status_history
		WHERE processing_status = 'failed'
			OR (processing_status IN ('pending', 'processing') AND created_at < $1)
		ORDER BY created_at ASC`

	return s.queryEntries(ctx, query, olderThan)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]*audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
