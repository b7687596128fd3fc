package invoice_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlyif-au/onlyif/internal/invoice"
)

func TestCalculate(t *testing.T) {
	type testCase struct {
		name           string
		category       invoice.Category
		valueCents     int64
		wantCommission int64
		wantGST        int64
		wantTotal      int64
		wantErr        bool
	}

	tests := []testCase{
		{
			name:           "SettlementCommission750k",
			category:       invoice.CategorySettlementCommission,
			valueCents:     75_000_000,
			wantCommission: 825_000,
			wantGST:        82_500,
			wantTotal:      907_500,
		},
		{
			name:           "SettlementCommission500k",
			category:       invoice.CategorySettlementCommission,
			valueCents:     50_000_000,
			wantCommission: 550_000,
			wantGST:        55_000,
			wantTotal:      605_000,
		},
		{
			name:           "PlatformCommission750k",
			category:       invoice.CategoryPlatformCommission,
			valueCents:     75_000_000,
			wantCommission: 412_500,
			wantGST:        41_250,
			wantTotal:      453_750,
		},
		{
			name:           "BuyerPayment750k",
			category:       invoice.CategoryBuyerPayment,
			valueCents:     75_000_000,
			wantCommission: 7_500_000,
			wantGST:        750_000,
			wantTotal:      8_250_000,
		},
		{
			name:           "GSTAppliedToRoundedBase",
			category:       invoice.CategorySettlementCommission,
			valueCents:     68_349_500, // commission 751,844.5 rounds to 751,845
			wantCommission: 751_845,
			wantGST:        75_185, // 75,184.5 rounds up, computed from the rounded base
			wantTotal:      827_030,
		},
		{
			name:       "ZeroValue",
			category:   invoice.CategoryBuyerPayment,
			valueCents: 0,
		},
		{
			name:       "UnknownCategory",
			category:   invoice.Category("referral_fee"),
			valueCents: 1_000_00,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := invoice.Calculate(tt.category, tt.valueCents)

			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCommission, got.CommissionCents)
			assert.Equal(t, tt.wantGST, got.GSTCents)
			assert.Equal(t, tt.wantTotal, got.TotalCents)
			assert.Equal(t, got.CommissionCents+got.GSTCents, got.TotalCents)
		})
	}
}

func TestDueDate(t *testing.T) {
	settlement := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, settlement.AddDate(0, 0, 7), invoice.DueDate(invoice.CategorySettlementCommission, settlement))
	assert.Equal(t, settlement.AddDate(0, 0, 7), invoice.DueDate(invoice.CategoryPlatformCommission, settlement))
	assert.Equal(t, settlement, invoice.DueDate(invoice.CategoryBuyerPayment, settlement))
}
