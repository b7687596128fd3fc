package remittance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount converts a profile's money string into cents.
func parseAmount(format amountFormat, s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))

	switch format {
	case amountEuropean:
		// "9.075,00": dots group thousands, the comma is the decimal mark.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		// "9,075.00": commas group thousands.
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}
