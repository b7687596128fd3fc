package invoice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/onlyif-au/onlyif/internal/invoice"
)

func TestService_GetOrCreate(t *testing.T) {
	propertyID := uuid.New()
	sellerID := uuid.New()
	agentID := uuid.New()
	settlement := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	params := invoice.GetOrCreateParams{
		Category:           invoice.CategorySettlementCommission,
		PropertyID:         propertyID,
		PropertyValueCents: 75_000_000,
		CounterpartyID:     sellerID,
		CounterpartyRole:   invoice.CounterpartySeller,
		AgentID:            &agentID,
		SettlementDate:     settlement,
	}

	type testCase struct {
		name        string
		setupMock   func(m *invoice.MockRepository)
		wantExisted bool
		wantTotal   int64
		wantErr     bool
	}

	tests := []testCase{
		{
			name: "CreatesWhenMissing",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					FindActiveByKey(gomock.Any(), propertyID, sellerID, invoice.CategorySettlementCommission).
					Return(nil, invoice.ErrNotFound)
				m.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, inv *invoice.Invoice) error {
						inv.ID = uuid.New()
						inv.Number = "INV-2025-00042"
						inv.CreatedAt = time.Now()
						return nil
					})
			},
			wantExisted: false,
			wantTotal:   907_500,
		},
		{
			name: "ReturnsExisting",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					FindActiveByKey(gomock.Any(), propertyID, sellerID, invoice.CategorySettlementCommission).
					Return(&invoice.Invoice{
						ID:         uuid.New(),
						Number:     "INV-2025-00007",
						TotalCents: 907_500,
					}, nil)
			},
			wantExisted: true,
			wantTotal:   907_500,
		},
		{
			name: "LostRaceReturnsWinner",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					FindActiveByKey(gomock.Any(), propertyID, sellerID, invoice.CategorySettlementCommission).
					Return(nil, invoice.ErrNotFound)
				m.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					Return(invoice.ErrDuplicate)
				m.EXPECT().
					FindActiveByKey(gomock.Any(), propertyID, sellerID, invoice.CategorySettlementCommission).
					Return(&invoice.Invoice{
						ID:         uuid.New(),
						Number:     "INV-2025-00008",
						TotalCents: 907_500,
					}, nil)
			},
			wantExisted: true,
			wantTotal:   907_500,
		},
		{
			name: "LookupError",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					FindActiveByKey(gomock.Any(), propertyID, sellerID, invoice.CategorySettlementCommission).
					Return(nil, errors.New("db error"))
			},
			wantErr: true,
		},
		{
			name: "CreateError",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					FindActiveByKey(gomock.Any(), propertyID, sellerID, invoice.CategorySettlementCommission).
					Return(nil, invoice.ErrNotFound)
				m.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := invoice.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := invoice.NewService(repo)
			got, existed, err := svc.GetOrCreate(context.Background(), params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantExisted, existed)
			assert.Equal(t, tt.wantTotal, got.TotalCents)
		})
	}
}

func TestService_GetOrCreate_PricesBuyerPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	propertyID := uuid.New()
	buyerID := uuid.New()
	settlement := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	repo := invoice.NewMockRepository(ctrl)
	repo.EXPECT().
		FindActiveByKey(gomock.Any(), propertyID, buyerID, invoice.CategoryBuyerPayment).
		Return(nil, invoice.ErrNotFound)
	repo.EXPECT().
		CreateInvoice(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv *invoice.Invoice) error {
			inv.ID = uuid.New()
			return nil
		})

	svc := invoice.NewService(repo)
	got, existed, err := svc.GetOrCreate(context.Background(), invoice.GetOrCreateParams{
		Category:           invoice.CategoryBuyerPayment,
		PropertyID:         propertyID,
		PropertyValueCents: 75_000_000,
		CounterpartyID:     buyerID,
		CounterpartyRole:   invoice.CounterpartyBuyer,
		SettlementDate:     settlement,
	})

	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, int64(7_500_000), got.CommissionCents)
	assert.Equal(t, int64(750_000), got.GSTCents)
	assert.Equal(t, int64(8_250_000), got.TotalCents)
	assert.Equal(t, settlement, got.DueAt)
	assert.Equal(t, invoice.StatusPending, got.Status)
}

func TestService_RecordPayment(t *testing.T) {
	invoiceID := uuid.New()

	type testCase struct {
		name      string
		params    invoice.RecordPaymentParams
		setupMock func(m *invoice.MockRepository)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Success",
			params: invoice.RecordPaymentParams{
				InvoiceID:   invoiceID,
				AmountCents: 907_500,
				Method:      "eft",
				Reference:   "INV-2025-00042",
			},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), invoiceID).
					Return(&invoice.Invoice{ID: invoiceID, Status: invoice.StatusPending, TotalCents: 907_500}, nil)
				m.EXPECT().
					AddPayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *invoice.Payment) (*invoice.Invoice, error) {
						assert.False(t, p.ReceivedAt.IsZero())
						return &invoice.Invoice{ID: invoiceID, Status: invoice.StatusPaid, TotalCents: 907_500, AmountPaidCents: 907_500}, nil
					})
			},
		},
		{
			name: "RejectsNonPositiveAmount",
			params: invoice.RecordPaymentParams{
				InvoiceID:   invoiceID,
				AmountCents: 0,
			},
			wantErr: true,
		},
		{
			name: "RejectsCancelledInvoice",
			params: invoice.RecordPaymentParams{
				InvoiceID:   invoiceID,
				AmountCents: 100,
			},
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), invoiceID).
					Return(&invoice.Invoice{ID: invoiceID, Status: invoice.StatusCancelled}, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := invoice.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := invoice.NewService(repo)
			got, err := svc.RecordPayment(context.Background(), tt.params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			assert.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	invoiceID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetInvoice(gomock.Any(), invoiceID).
			Return(&invoice.Invoice{ID: invoiceID, Status: invoice.StatusPending}, nil)
		repo.EXPECT().
			UpdateStatus(gomock.Any(), invoiceID, invoice.StatusCancelled).
			Return(nil)

		svc := invoice.NewService(repo)
		assert.NoError(t, svc.Cancel(context.Background(), invoiceID))
	})

	t.Run("RejectsPaidInvoice", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetInvoice(gomock.Any(), invoiceID).
			Return(&invoice.Invoice{ID: invoiceID, Number: "INV-2025-00001", Status: invoice.StatusPaid}, nil)

		svc := invoice.NewService(repo)
		assert.Error(t, svc.Cancel(context.Background(), invoiceID))
	})
}
