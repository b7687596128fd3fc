// Package remittance parses trust-account remittance files into receipt
// lines the reconciliation service can apply.
package remittance

import (
	"time"
)

// Row is one remittance line: money received into the trust account carrying
// a reference that should name the invoice it pays. Reversals come through
// with negative amounts; rows the bank appends without a reference come
// through with an empty one. Both are for the reconciler to judge.
type Row struct {
	Date        time.Time
	Reference   string
	AmountCents int64
	Detail      string
}
