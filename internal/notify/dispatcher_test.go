package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/invoice"
	"github.com/onlyif-au/onlyif/internal/notify"
	"github.com/onlyif-au/onlyif/internal/property"
)

type dispatcherMocks struct {
	repo       *notify.MockRepository
	invoices   *notify.MockInvoiceSource
	properties *notify.MockPropertySource
	directory  *notify.MockDirectory
	sink       *notify.MockSink
}

func newDispatcher(t *testing.T, opts notify.Options) (*notify.Dispatcher, dispatcherMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := dispatcherMocks{
		repo:       notify.NewMockRepository(ctrl),
		invoices:   notify.NewMockInvoiceSource(ctrl),
		properties: notify.NewMockPropertySource(ctrl),
		directory:  notify.NewMockDirectory(ctrl),
		sink:       notify.NewMockSink(ctrl),
	}

	d := notify.NewDispatcher(m.repo, m.invoices, m.properties, m.directory, []notify.Sink{m.sink}, opts)

	return d, m
}

func TestDispatcher_StatusChanged(t *testing.T) {
	d, m := newDispatcher(t, notify.Options{})

	ownerID := uuid.New()
	propertyID := uuid.New()

	m.repo.EXPECT().
		Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ns []*notify.Notification) error {
			require.Len(t, ns, 1)
			assert.Equal(t, ownerID, ns[0].RecipientID)
			assert.Equal(t, notify.KindStatusChange, ns[0].Kind)
			assert.Equal(t, notify.StatusPending, ns[0].Status)

			var payload notify.StatusChangePayload
			require.NoError(t, json.Unmarshal(ns[0].Payload, &payload))
			assert.Equal(t, "unconditional", payload.NewStatus)
			assert.Equal(t, "contract_exchanged", payload.PreviousStatus)

			return nil
		})

	d.StatusChanged(context.Background(), notify.StatusChange{
		PropertyID: propertyID,
		OwnerID:    ownerID,
		Address:    "12 Acacia Ave, Kirribilli",
		Previous:   property.SalesStatusContractExchanged,
		New:        property.SalesStatusUnconditional,
		ActorName:  "Dana Wells",
	})
}

func TestDispatcher_SystemAlert_FansOutToAdmins(t *testing.T) {
	d, m := newDispatcher(t, notify.Options{})

	adminA := &directory.User{ID: uuid.New(), Role: directory.RoleAdmin}
	adminB := &directory.User{ID: uuid.New(), Role: directory.RoleAdmin}

	m.directory.EXPECT().Admins(gomock.Any()).Return([]*directory.User{adminA, adminB}, nil)
	m.repo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	d.SystemAlert(context.Background(), notify.Alert{
		Subject: "invoice generation failed",
		Detail:  "inserting invoice: connection refused",
	})
}

func TestDispatcher_ProcessOnce_Delivers(t *testing.T) {
	d, m := newDispatcher(t, notify.Options{})

	recipient := &directory.User{ID: uuid.New(), Role: directory.RoleSeller, Name: "Priya Shah"}
	payload, _ := json.Marshal(notify.StatusChangePayload{NewStatus: "settled"})

	queued := &notify.Notification{
		ID:          uuid.New(),
		RecipientID: recipient.ID,
		Kind:        notify.KindStatusChange,
		Payload:     payload,
		Status:      notify.StatusPending,
	}

	m.repo.EXPECT().ListDue(gomock.Any(), gomock.Any(), 50).Return([]*notify.Notification{queued}, nil)
	m.directory.EXPECT().UserByID(gomock.Any(), recipient.ID).Return(recipient, nil)
	m.sink.EXPECT().
		Deliver(gomock.Any(), gomock.Any(), recipient).
		DoAndReturn(func(_ context.Context, msg *notify.Message, _ *directory.User) error {
			assert.Equal(t, queued.ID, msg.ID)
			assert.Equal(t, notify.KindStatusChange, msg.Kind)
			assert.JSONEq(t, string(payload), string(msg.Payload))
			return nil
		})
	m.repo.EXPECT().MarkDelivered(gomock.Any(), queued.ID, gomock.Any()).Return(nil)

	delivered, err := d.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestDispatcher_ProcessOnce_ExpandsInvoicePayload(t *testing.T) {
	d, m := newDispatcher(t, notify.Options{})

	recipient := &directory.User{ID: uuid.New(), Role: directory.RoleBuyer}
	invoiceID := uuid.New()
	propertyID := uuid.New()
	payload, _ := json.Marshal(notify.InvoiceGeneratedPayload{InvoiceID: invoiceID})

	queued := &notify.Notification{
		ID:          uuid.New(),
		RecipientID: recipient.ID,
		Kind:        notify.KindInvoiceGenerated,
		Payload:     payload,
	}

	m.repo.EXPECT().ListDue(gomock.Any(), gomock.Any(), 50).Return([]*notify.Notification{queued}, nil)
	m.directory.EXPECT().UserByID(gomock.Any(), recipient.ID).Return(recipient, nil)
	m.invoices.EXPECT().Get(gomock.Any(), invoiceID).Return(&invoice.Invoice{
		ID:         invoiceID,
		Number:     "INV-2025-00042",
		Category:   invoice.CategoryBuyerPayment,
		PropertyID: propertyID,
		TotalCents: 8_250_000,
		DueAt:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}, nil)
	m.properties.EXPECT().Get(gomock.Any(), propertyID).Return(&property.Property{
		ID:      propertyID,
		Address: "12 Acacia Ave, Kirribilli",
	}, nil)
	m.sink.EXPECT().
		Deliver(gomock.Any(), gomock.Any(), recipient).
		DoAndReturn(func(_ context.Context, msg *notify.Message, _ *directory.User) error {
			var expanded notify.InvoiceGeneratedPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &expanded))
			assert.Equal(t, "INV-2025-00042", expanded.InvoiceNumber)
			assert.Equal(t, int64(8_250_000), expanded.TotalCents)
			assert.Equal(t, int64(8_250_000), expanded.AmountDueCents)
			assert.Equal(t, "12 Acacia Ave, Kirribilli", expanded.PropertyAddress)
			return nil
		})
	m.repo.EXPECT().MarkDelivered(gomock.Any(), queued.ID, gomock.Any()).Return(nil)

	delivered, err := d.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestDispatcher_ProcessOnce_ReschedulesOnFailure(t *testing.T) {
	d, m := newDispatcher(t, notify.Options{MaxAttempts: 3, RetryBackoff: time.Minute})

	recipient := &directory.User{ID: uuid.New(), Role: directory.RoleSeller}
	queued := &notify.Notification{
		ID:          uuid.New(),
		RecipientID: recipient.ID,
		Kind:        notify.KindStatusChange,
		Payload:     json.RawMessage(`{}`),
		Attempts:    0,
	}

	m.repo.EXPECT().ListDue(gomock.Any(), gomock.Any(), 50).Return([]*notify.Notification{queued}, nil)
	m.directory.EXPECT().UserByID(gomock.Any(), recipient.ID).Return(recipient, nil)
	m.sink.EXPECT().Deliver(gomock.Any(), gomock.Any(), recipient).Return(errors.New("webhook down"))
	m.sink.EXPECT().Name().Return("webhook")
	m.repo.EXPECT().
		Reschedule(gomock.Any(), queued.ID, 1, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ int, nextAt time.Time, lastError string) error {
			assert.True(t, nextAt.After(time.Now().Add(30*time.Second)))
			assert.Contains(t, lastError, "webhook down")
			return nil
		})

	delivered, err := d.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestDispatcher_ProcessOnce_DeadLettersAfterMaxAttempts(t *testing.T) {
	d, m := newDispatcher(t, notify.Options{MaxAttempts: 3})

	recipient := &directory.User{ID: uuid.New(), Role: directory.RoleSeller}
	queued := &notify.Notification{
		ID:          uuid.New(),
		RecipientID: recipient.ID,
		Kind:        notify.KindStatusChange,
		Payload:     json.RawMessage(`{}`),
		Attempts:    2,
	}

	m.repo.EXPECT().ListDue(gomock.Any(), gomock.Any(), 50).Return([]*notify.Notification{queued}, nil)
	m.directory.EXPECT().UserByID(gomock.Any(), recipient.ID).Return(recipient, nil)
	m.sink.EXPECT().Deliver(gomock.Any(), gomock.Any(), recipient).Return(errors.New("webhook down"))
	m.sink.EXPECT().Name().Return("webhook")
	m.repo.EXPECT().MarkDead(gomock.Any(), queued.ID, gomock.Any()).Return(nil)

	delivered, err := d.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, delivered)
}
