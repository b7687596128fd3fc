package remittance

// amountFormat says how a profile writes money.
type amountFormat int

const (
	// amountPlain is "9075.00" or "9,075.00", optionally with a currency sign.
	amountPlain amountFormat = iota
	// amountEuropean is "9.075,00", the convention of the legacy trust
	// software exports that also pick semicolon delimiters.
	amountEuropean
)

// Profile describes the column layout of one remittance file format.
// Supporting a new bank or trust package is adding a Profile here.
type Profile struct {
	Name       string
	Comma      rune
	DateCol    string
	RefCol     string
	AmountCol  string
	DetailCol  string
	DateFormat string
	Amounts    amountFormat
}

// requiredCols lists the header cells that must all be present for the
// profile to match. The detail column is optional everywhere.
func (p Profile) requiredCols() []string {
	return []string{p.DateCol, p.RefCol, p.AmountCol}
}

// profiles is the ordered list of layouts tried during detection. More
// specific headers come first.
var profiles = []Profile{
	{
		Name:       "trust-ledger",
		Comma:      ';',
		DateCol:    "Receipt Date",
		RefCol:     "Invoice Ref",
		AmountCol:  "Amount",
		DetailCol:  "Payer",
		DateFormat: "02-01-2006",
		Amounts:    amountEuropean,
	},
	{
		Name:       "bank-feed",
		Comma:      ',',
		DateCol:    "Date",
		RefCol:     "Reference",
		AmountCol:  "Amount",
		DetailCol:  "Description",
		DateFormat: "02/01/2006",
		Amounts:    amountPlain,
	},
}
