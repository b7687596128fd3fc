package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/property"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=audit
type Repository interface {
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	SetOutcome(ctx context.Context, id uuid.UUID, status ProcessingStatus, invoiceID *uuid.UUID, outcome *InvoiceOutcome) error
	AppendError(ctx context.Context, id uuid.UUID, entry ErrorEntry) error
	ListEntriesByProperty(ctx context.Context, propertyID uuid.UUID) ([]*Entry, error)
	ListStaleEntries(ctx context.Context, olderThan time.Time) ([]*Entry, error)
	ListAttentionEntries(ctx context.Context, olderThan time.Time) ([]*Entry, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type RecordParams struct {
	PropertyID        uuid.UUID
	PreviousStatus    property.SalesStatus
	NewStatus         property.SalesStatus
	ChangedBy         uuid.UUID
	ChangeReason      string
	Metadata          Metadata
	SettlementDetails json.RawMessage
}

// Record writes the history entry for a transition attempt. The entry starts
// in processing; the caller reports the outcome of the follow-on effects via
// MarkCompleted or MarkFailed.
func (s *Service) Record(ctx context.Context, params RecordParams) (*Entry, error) {
	entry := &Entry{
		PropertyID:        params.PropertyID,
		PreviousStatus:    params.PreviousStatus,
		NewStatus:         params.NewStatus,
		ChangedBy:         params.ChangedBy,
		ChangeReason:      params.ChangeReason,
		Metadata:          params.Metadata,
		SettlementDetails: params.SettlementDetails,
		ProcessingStatus:  ProcessingInProgress,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// MarkCompleted closes out an entry whose side effects all landed. The
// invoice reference and outcome say what billing did for this transition.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID, invoiceID *uuid.UUID, outcome InvoiceOutcome) error {
	return s.repo.SetOutcome(ctx, id, ProcessingCompleted, invoiceID, &outcome)
}

// MarkFailed records a side-effect failure against the entry. The cause is
// appended to the entry's error log, preserving earlier attempts.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	if err := s.repo.AppendError(ctx, id, ErrorEntry{At: time.Now().UTC(), Message: cause.Error()}); err != nil {
		return err
	}

	failed := InvoiceFailed

	return s.repo.SetOutcome(ctx, id, ProcessingFailed, nil, &failed)
}

func (s *Service) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*Entry, error) {
	return s.repo.ListEntriesByProperty(ctx, propertyID)
}

// ListStale returns entries still marked pending or processing after the
// cutoff. These are transitions whose process died mid-sequence; operators
// retry their billing from here.
func (s *Service) ListStale(ctx context.Context, olderThan time.Time) ([]*Entry, error) {
	return s.repo.ListStaleEntries(ctx, olderThan)
}

// ListAttention returns everything an operator should look at: entries whose
// billing failed outright, plus stale pending or processing entries.
func (s *Service) ListAttention(ctx context.Context, olderThan time.Time) ([]*Entry, error) {
	return s.repo.ListAttentionEntries(ctx, olderThan)
}
