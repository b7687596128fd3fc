package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/property"
)

func TestService_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	propertyID := uuid.New()
	actorID := uuid.New()

	repo := audit.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *audit.Entry) error {
			assert.Equal(t, audit.ProcessingInProgress, entry.ProcessingStatus)
			assert.Equal(t, property.SalesStatusNone, entry.PreviousStatus)
			assert.Equal(t, property.SalesStatusContractExchanged, entry.NewStatus)

			entry.ID = uuid.New()
			entry.CreatedAt = time.Now()
			return nil
		})

	svc := audit.NewService(repo)
	entry, err := svc.Record(context.Background(), audit.RecordParams{
		PropertyID:     propertyID,
		PreviousStatus: property.SalesStatusNone,
		NewStatus:      property.SalesStatusContractExchanged,
		ChangedBy:      actorID,
		ChangeReason:   "contracts exchanged at auction",
		Metadata:       audit.Metadata{ActorRole: "agent"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
}

func TestService_MarkFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entryID := uuid.New()
	cause := errors.New("inserting invoice: connection refused")

	repo := audit.NewMockRepository(ctrl)
	repo.EXPECT().
		AppendError(gomock.Any(), entryID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, errEntry audit.ErrorEntry) error {
			assert.Equal(t, cause.Error(), errEntry.Message)
			assert.False(t, errEntry.At.IsZero())
			return nil
		})
	repo.EXPECT().
		SetOutcome(gomock.Any(), entryID, audit.ProcessingFailed, gomock.Nil(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ audit.ProcessingStatus, _ *uuid.UUID, outcome *audit.InvoiceOutcome) error {
			require.NotNil(t, outcome)
			assert.Equal(t, audit.InvoiceFailed, *outcome)
			return nil
		})

	svc := audit.NewService(repo)
	assert.NoError(t, svc.MarkFailed(context.Background(), entryID, cause))
}

func TestService_MarkCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entryID := uuid.New()
	invoiceID := uuid.New()

	repo := audit.NewMockRepository(ctrl)
	repo.EXPECT().
		SetOutcome(gomock.Any(), entryID, audit.ProcessingCompleted, &invoiceID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ audit.ProcessingStatus, _ *uuid.UUID, outcome *audit.InvoiceOutcome) error {
			require.NotNil(t, outcome)
			assert.Equal(t, audit.InvoiceGenerated, *outcome)
			return nil
		})

	svc := audit.NewService(repo)
	assert.NoError(t, svc.MarkCompleted(context.Background(), entryID, &invoiceID, audit.InvoiceGenerated))
}

func TestService_ListStale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cutoff := time.Now().Add(-10 * time.Minute)

	repo := audit.NewMockRepository(ctrl)
	repo.EXPECT().
		ListStaleEntries(gomock.Any(), cutoff).
		Return([]*audit.Entry{
			{ID: uuid.New(), ProcessingStatus: audit.ProcessingInProgress},
		}, nil)

	svc := audit.NewService(repo)
	entries, err := svc.ListStale(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
