package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Billing rates are fixed marketplace policy. They are never taken from the
// request or from agent agreements; the agent's negotiated rate lives on the
// listing and is settled outside this ledger.
var (
	settlementCommissionRate = decimal.RequireFromString("0.011")
	platformCommissionRate   = decimal.RequireFromString("0.0055")
	buyerPaymentRate         = decimal.RequireFromString("0.10")
	gstRate                  = decimal.RequireFromString("0.10")
)

// Breakdown holds the computed amounts for one invoice, in cents.
type Breakdown struct {
	Rate            decimal.Decimal
	CommissionCents int64
	GSTCents        int64
	TotalCents      int64
}

// Calculate computes the billed amounts for a category from the property
// value. The base amount is rounded to whole cents first and GST is applied
// to the rounded base, so the stored parts always sum to the total.
func Calculate(category Category, propertyValueCents int64) (Breakdown, error) {
	rate, err := rateFor(category)
	if err != nil {
		return Breakdown{}, err
	}

	value := decimal.NewFromInt(propertyValueCents)
	commission := value.Mul(rate).Round(0)
	gst := commission.Mul(gstRate).Round(0)

	return Breakdown{
		Rate:            rate,
		CommissionCents: commission.IntPart(),
		GSTCents:        gst.IntPart(),
		TotalCents:      commission.Add(gst).IntPart(),
	}, nil
}

func rateFor(category Category) (decimal.Decimal, error) {
	switch category {
	case CategorySettlementCommission:
		return settlementCommissionRate, nil
	case CategoryPlatformCommission:
		return platformCommissionRate, nil
	case CategoryBuyerPayment:
		return buyerPaymentRate, nil
	}

	return decimal.Decimal{}, fmt.Errorf("no billing rate for category %q", category)
}

// DueDate returns when an invoice of the given category falls due.
// Commission invoices allow seven days from settlement; the buyer's deposit
// balance is due on the settlement date itself.
func DueDate(category Category, settlementDate time.Time) time.Time {
	if category == CategoryBuyerPayment {
		return settlementDate
	}

	return settlementDate.AddDate(0, 0, 7)
}
