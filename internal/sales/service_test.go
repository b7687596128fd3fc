package sales_test

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
	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/invoice"
	"github.com/onlyif-au/onlyif/internal/property"
	"github.com/onlyif-au/onlyif/internal/sales"
)

type serviceMocks struct {
	properties *sales.MockPropertyStore
	ledger     *sales.MockLedger
	recorder   *sales.MockRecorder
	payments   *sales.MockPayments
	notifier   *sales.MockNotifier
}

func newService(t *testing.T, opts sales.Options) (*sales.Service, serviceMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := serviceMocks{
		properties: sales.NewMockPropertyStore(ctrl),
		ledger:     sales.NewMockLedger(ctrl),
		recorder:   sales.NewMockRecorder(ctrl),
		payments:   sales.NewMockPayments(ctrl),
		notifier:   sales.NewMockNotifier(ctrl),
	}

	svc := sales.NewService(m.properties, m.ledger, m.recorder, m.payments, m.notifier, opts)

	return svc, m
}

type saleFixture struct {
	property *property.Property
	agent    sales.Actor
	seller   uuid.UUID
	buyer    uuid.UUID
}

func newSaleFixture() saleFixture {
	agentID := uuid.New()

	return saleFixture{
		property: &property.Property{
			ID:         uuid.New(),
			Slug:       "12-acacia-ave-kirribilli",
			Address:    "12 Acacia Ave, Kirribilli",
			PriceCents: 75_000_000,
			Status:     property.StatusActive,
			OwnerID:    uuid.New(),
			Agents: []property.AgentAssignment{
				{AgentID: agentID, IsActive: true},
			},
		},
		agent:  sales.Actor{ID: agentID, Name: "Dana Wells", Role: directory.RoleAgent},
		seller: uuid.New(),
		buyer:  uuid.New(),
	}
}

func settledCopy(p *property.Property, at time.Time) *property.Property {
	settled := *p
	settled.SalesStatus = property.SalesStatusSettled
	settled.Status = property.StatusSold
	settled.SettlementDate = &at

	return &settled
}

func TestService_Transition_SettlesAndBills(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()
	fix.property.SalesStatus = property.SalesStatusUnconditional

	settlementDate := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	entryID := uuid.New()
	sellerInvoice := &invoice.Invoice{ID: uuid.New(), Number: "INV-2025-00042", TotalCents: 907_500}
	buyerInvoice := &invoice.Invoice{ID: uuid.New(), Number: "INV-2025-00043", TotalCents: 8_250_000}

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)
	m.properties.EXPECT().
		ApplySalesStatus(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, update property.SalesStatusUpdate) (*property.Property, error) {
			assert.Equal(t, fix.property.ID, update.PropertyID)
			assert.Equal(t, property.SalesStatusSettled, update.SalesStatus)
			require.NotNil(t, update.ListingStatus)
			assert.Equal(t, property.StatusSold, *update.ListingStatus)
			require.NotNil(t, update.SettlementDate)
			assert.Equal(t, settlementDate, *update.SettlementDate)

			return settledCopy(fix.property, settlementDate), nil
		})
	m.recorder.EXPECT().
		Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params audit.RecordParams) (*audit.Entry, error) {
			assert.Equal(t, property.SalesStatusUnconditional, params.PreviousStatus)
			assert.Equal(t, property.SalesStatusSettled, params.NewStatus)
			assert.Equal(t, fix.agent.ID, params.ChangedBy)
			assert.Equal(t, "agent", params.Metadata.ActorRole)
			assert.NotEmpty(t, params.SettlementDetails)

			return &audit.Entry{
				ID:               entryID,
				PropertyID:       params.PropertyID,
				PreviousStatus:   params.PreviousStatus,
				NewStatus:        params.NewStatus,
				ProcessingStatus: audit.ProcessingInProgress,
			}, nil
		})
	m.ledger.EXPECT().
		GetOrCreate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params invoice.GetOrCreateParams) (*invoice.Invoice, bool, error) {
			assert.Equal(t, invoice.CategorySettlementCommission, params.Category)
			assert.Equal(t, fix.seller, params.CounterpartyID)
			assert.Equal(t, invoice.CounterpartySeller, params.CounterpartyRole)
			assert.Equal(t, int64(75_000_000), params.PropertyValueCents)
			require.NotNil(t, params.AgentID)
			assert.Equal(t, fix.agent.ID, *params.AgentID)

			return sellerInvoice, false, nil
		})
	m.recorder.EXPECT().
		MarkCompleted(gomock.Any(), entryID, &sellerInvoice.ID, audit.InvoiceGenerated).
		Return(nil)
	m.payments.EXPECT().EnsureForInvoice(gomock.Any(), sellerInvoice).Return(nil)
	m.notifier.EXPECT().InvoiceIssued(gomock.Any(), sellerInvoice)
	m.ledger.EXPECT().
		GetOrCreate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params invoice.GetOrCreateParams) (*invoice.Invoice, bool, error) {
			assert.Equal(t, invoice.CategoryBuyerPayment, params.Category)
			assert.Equal(t, fix.buyer, params.CounterpartyID)
			assert.Equal(t, invoice.CounterpartyBuyer, params.CounterpartyRole)

			return buyerInvoice, false, nil
		})
	m.payments.EXPECT().EnsureForInvoice(gomock.Any(), buyerInvoice).Return(nil)
	m.notifier.EXPECT().InvoiceIssued(gomock.Any(), buyerInvoice)
	m.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any())

	result, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusSettled,
		Actor:            fix.agent,
		ChangeReason:     "settlement completed",
		SellerID:         &fix.seller,
		BuyerID:          &fix.buyer,
		Settlement: &sales.SettlementDetails{
			SettlementDate: &settlementDate,
			DepositHeldBy:  "agent_trust",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, property.SalesStatusSettled, result.Property.SalesStatus)
	assert.Equal(t, property.StatusSold, result.Property.Status)
	assert.Equal(t, sellerInvoice, result.Invoice)
	assert.False(t, result.InvoiceAlreadyExisted)
	assert.Empty(t, result.Warning)
	assert.Equal(t, audit.ProcessingCompleted, result.Entry.ProcessingStatus)
}

func TestService_Transition_RejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(t, sales.Options{})

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: "12-acacia-ave-kirribilli",
		Status:           property.SalesStatus("exchanged"),
		Actor:            sales.Actor{ID: uuid.New(), Role: directory.RoleAgent},
	})

	assert.ErrorIs(t, err, sales.ErrInvalidStatus)
}

func TestService_Transition_RequiresSettlementDetails(t *testing.T) {
	svc, _ := newService(t, sales.Options{})

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: "12-acacia-ave-kirribilli",
		Status:           property.SalesStatusSettled,
		Actor:            sales.Actor{ID: uuid.New(), Role: directory.RoleAgent},
	})

	assert.ErrorIs(t, err, sales.ErrMissingSettlement)
}

func TestService_Transition_RejectsInactiveAgent(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusContractExchanged,
		Actor:            sales.Actor{ID: uuid.New(), Role: directory.RoleAgent},
	})

	assert.ErrorIs(t, err, sales.ErrNotAuthorized)
}

func TestService_Transition_RejectsOwner(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusContractExchanged,
		Actor:            sales.Actor{ID: fix.property.OwnerID, Role: directory.RoleAdmin},
	})

	assert.ErrorIs(t, err, sales.ErrSelfDealing)
}

func TestService_Transition_RejectsBuyerRole(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusContractExchanged,
		Actor:            sales.Actor{ID: uuid.New(), Role: directory.RoleBuyer},
	})

	assert.ErrorIs(t, err, sales.ErrNotAuthorized)
}

func TestService_Transition_RejectsSoldListing(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()
	fix.property.Status = property.StatusSold
	fix.property.SalesStatus = property.SalesStatusSettled

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusUnconditional,
		Actor:            fix.agent,
	})

	assert.ErrorIs(t, err, sales.ErrListingClosed)
}

func TestService_Transition_WarnsOnSkippedStages(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()
	fix.property.SalesStatus = property.SalesStatusSettled
	fix.property.Status = property.StatusActive

	entryID := uuid.New()

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)
	m.properties.EXPECT().
		ApplySalesStatus(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, update property.SalesStatusUpdate) (*property.Property, error) {
			moved := *fix.property
			moved.SalesStatus = update.SalesStatus

			return &moved, nil
		})
	m.recorder.EXPECT().
		Record(gomock.Any(), gomock.Any()).
		Return(&audit.Entry{ID: entryID, ProcessingStatus: audit.ProcessingInProgress}, nil)
	m.recorder.EXPECT().
		MarkCompleted(gomock.Any(), entryID, gomock.Nil(), audit.InvoiceSkipped).
		Return(nil)
	m.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any())

	result, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusContractExchanged,
		Actor:            fix.agent,
		ChangeReason:     "correcting a mis-recorded settlement",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, property.SalesStatusContractExchanged, result.Property.SalesStatus)
}

func TestService_Transition_StrictModeBlocksRegression(t *testing.T) {
	svc, m := newService(t, sales.Options{StrictProgression: true})
	fix := newSaleFixture()
	fix.property.SalesStatus = property.SalesStatusUnconditional

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)

	_, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusContractExchanged,
		Actor:            fix.agent,
	})

	assert.ErrorIs(t, err, sales.ErrOutOfOrder)
}

func TestService_Transition_BillingFailureKeepsStatus(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()
	fix.property.SalesStatus = property.SalesStatusUnconditional

	entryID := uuid.New()
	boom := errors.New("inserting invoice: connection refused")

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)
	m.properties.EXPECT().
		ApplySalesStatus(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, update property.SalesStatusUpdate) (*property.Property, error) {
			return settledCopy(fix.property, *update.SettlementDate), nil
		})
	m.recorder.EXPECT().
		Record(gomock.Any(), gomock.Any()).
		Return(&audit.Entry{ID: entryID, ProcessingStatus: audit.ProcessingInProgress}, nil)
	m.ledger.EXPECT().
		GetOrCreate(gomock.Any(), gomock.Any()).
		Return(nil, false, boom)
	m.recorder.EXPECT().
		MarkFailed(gomock.Any(), entryID, gomock.Any()).
		Return(nil)
	m.notifier.EXPECT().SystemAlert(gomock.Any(), gomock.Any())
	m.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any())

	result, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusSettled,
		Actor:            fix.agent,
		Settlement:       &sales.SettlementDetails{DepositHeldBy: "solicitor_trust"},
	})

	require.NoError(t, err)
	assert.Equal(t, property.SalesStatusSettled, result.Property.SalesStatus)
	assert.Nil(t, result.Invoice)
	assert.Equal(t, audit.ProcessingFailed, result.Entry.ProcessingStatus)
	require.NotEmpty(t, result.Entry.ErrorLog)
	assert.Contains(t, result.Entry.ErrorLog[0].Message, "connection refused")
}

func TestService_Transition_ResettleReturnsExistingInvoice(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()
	settledAt := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	fix.property.SalesStatus = property.SalesStatusSettled
	fix.property.Status = property.StatusSold
	fix.property.SettlementDate = &settledAt

	entryID := uuid.New()
	existing := &invoice.Invoice{ID: uuid.New(), Number: "INV-2025-00042", TotalCents: 907_500}

	m.properties.EXPECT().
		GetByIDOrSlug(gomock.Any(), fix.property.Slug).
		Return(fix.property, nil)
	m.properties.EXPECT().
		ApplySalesStatus(gomock.Any(), gomock.Any()).
		Return(fix.property, nil)
	m.recorder.EXPECT().
		Record(gomock.Any(), gomock.Any()).
		Return(&audit.Entry{ID: entryID, ProcessingStatus: audit.ProcessingInProgress}, nil)
	m.ledger.EXPECT().
		GetOrCreate(gomock.Any(), gomock.Any()).
		Return(existing, true, nil)
	m.recorder.EXPECT().
		MarkCompleted(gomock.Any(), entryID, &existing.ID, audit.InvoiceAlreadyExisted).
		Return(nil)
	m.payments.EXPECT().EnsureForInvoice(gomock.Any(), existing).Return(nil)
	m.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any())

	result, err := svc.Transition(context.Background(), sales.TransitionRequest{
		PropertyIDOrSlug: fix.property.Slug,
		Status:           property.SalesStatusSettled,
		Actor:            fix.agent,
		Settlement:       &sales.SettlementDetails{SettlementDate: &settledAt, DepositHeldBy: "agent_trust"},
	})

	require.NoError(t, err)
	assert.Equal(t, existing, result.Invoice)
	assert.True(t, result.InvoiceAlreadyExisted)
}

func TestService_RetryBilling(t *testing.T) {
	svc, m := newService(t, sales.Options{})
	fix := newSaleFixture()
	settledAt := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	prop := settledCopy(fix.property, settledAt)

	entryID := uuid.New()
	entry := &audit.Entry{
		ID:                entryID,
		PropertyID:        prop.ID,
		PreviousStatus:    property.SalesStatusUnconditional,
		NewStatus:         property.SalesStatusSettled,
		ProcessingStatus:  audit.ProcessingFailed,
		SettlementDetails: []byte(`{"settlement_date":"2025-06-02T00:00:00Z","seller_id":"` + fix.seller.String() + `","buyer_id":"` + fix.buyer.String() + `"}`),
	}

	sellerInvoice := &invoice.Invoice{ID: uuid.New(), Number: "INV-2025-00042"}
	buyerInvoice := &invoice.Invoice{ID: uuid.New(), Number: "INV-2025-00043"}

	m.recorder.EXPECT().Get(gomock.Any(), entryID).Return(entry, nil)
	m.properties.EXPECT().Get(gomock.Any(), prop.ID).Return(prop, nil)
	m.ledger.EXPECT().
		GetOrCreate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params invoice.GetOrCreateParams) (*invoice.Invoice, bool, error) {
			assert.Equal(t, invoice.CategorySettlementCommission, params.Category)
			assert.Equal(t, fix.seller, params.CounterpartyID)
			assert.Equal(t, settledAt, params.SettlementDate)

			return sellerInvoice, false, nil
		})
	m.recorder.EXPECT().
		MarkCompleted(gomock.Any(), entryID, &sellerInvoice.ID, audit.InvoiceGenerated).
		Return(nil)
	m.payments.EXPECT().EnsureForInvoice(gomock.Any(), sellerInvoice).Return(nil)
	m.notifier.EXPECT().InvoiceIssued(gomock.Any(), sellerInvoice)
	m.ledger.EXPECT().
		GetOrCreate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params invoice.GetOrCreateParams) (*invoice.Invoice, bool, error) {
			assert.Equal(t, invoice.CategoryBuyerPayment, params.Category)
			assert.Equal(t, fix.buyer, params.CounterpartyID)

			return buyerInvoice, false, nil
		})
	m.payments.EXPECT().EnsureForInvoice(gomock.Any(), buyerInvoice).Return(nil)
	m.notifier.EXPECT().InvoiceIssued(gomock.Any(), buyerInvoice)

	result, err := svc.RetryBilling(context.Background(), entryID)

	require.NoError(t, err)
	assert.Equal(t, sellerInvoice, result.Invoice)
	assert.Equal(t, audit.ProcessingCompleted, result.Entry.ProcessingStatus)
}

func TestService_RetryBilling_RejectsNonSettlementEntry(t *testing.T) {
	svc, m := newService(t, sales.Options{})

	entryID := uuid.New()
	m.recorder.EXPECT().Get(gomock.Any(), entryID).Return(&audit.Entry{
		ID:        entryID,
		NewStatus: property.SalesStatusContractExchanged,
	}, nil)

	_, err := svc.RetryBilling(context.Background(), entryID)

	assert.ErrorIs(t, err, sales.ErrNotRetryable)
}
