package remittance_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlyif-au/onlyif/internal/remittance"
)

func TestParser_Parse_TrustLedger(t *testing.T) {
	file := `Trust Account Remittance - 09-06-2025;ACC 004-521
Agency;OnlyIf Marketplace Pty Ltd

Receipt Date;Invoice Ref;Amount;Payer
02-06-2025;INV-2025-00042;9.075,00;Harbourview Settlements
03-06-2025;INV-2025-00043;82.500,00;J & M O'Brien
04-06-2025;;1.250,00;Unreferenced deposit
05-06-2025;INV-2025-00042;-9.075,00;Reversal of receipt 8812
Total;;83.750,00;
`

	rows, err := remittance.NewParser().Parse(strings.NewReader(file))

	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, "INV-2025-00042", rows[0].Reference)
	assert.Equal(t, int64(907_500), rows[0].AmountCents)
	assert.Equal(t, "Harbourview Settlements", rows[0].Detail)

	assert.Equal(t, int64(8_250_000), rows[1].AmountCents)

	assert.Empty(t, rows[2].Reference)
	assert.Equal(t, int64(125_000), rows[2].AmountCents)

	assert.Equal(t, int64(-907_500), rows[3].AmountCents)
}

func TestParser_Parse_BankFeed(t *testing.T) {
	file := `Date,Description,Reference,Amount
02/06/2025,OSKO PAYMENT,INV-2025-00042,"$9,075.00"
03/06/2025,TRANSFER,INV-2025-00044,550.00
`

	rows, err := remittance.NewParser().Parse(strings.NewReader(file))

	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, "INV-2025-00042", rows[0].Reference)
	assert.Equal(t, int64(907_500), rows[0].AmountCents)
	assert.Equal(t, "OSKO PAYMENT", rows[0].Detail)

	assert.Equal(t, "INV-2025-00044", rows[1].Reference)
	assert.Equal(t, int64(55_000), rows[1].AmountCents)
}

func TestParser_Parse_SkipsUnreadableRows(t *testing.T) {
	file := `Date,Description,Reference,Amount
02/06/2025,OK,INV-2025-00001,100.00
not a date,BAD DATE,INV-2025-00002,100.00
03/06/2025,BAD AMOUNT,INV-2025-00003,one hundred
04/06/2025,BLANK AMOUNT,INV-2025-00004,
`

	rows, err := remittance.NewParser().Parse(strings.NewReader(file))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-2025-00001", rows[0].Reference)
}

func TestParser_Parse_UnknownLayout(t *testing.T) {
	file := `Foo,Bar,Baz
1,2,3
`

	_, err := remittance.NewParser().Parse(strings.NewReader(file))

	assert.ErrorIs(t, err, remittance.ErrUnknownLayout)
}

func TestParser_Parse_EmptyFile(t *testing.T) {
	_, err := remittance.NewParser().Parse(strings.NewReader(""))

	assert.ErrorIs(t, err, remittance.ErrUnknownLayout)
}

func TestParser_Parse_Windows1252TrustFile(t *testing.T) {
	// "Müller Conveyancing" with ü as the single Windows-1252 byte 0xFC.
	file := "Receipt Date;Invoice Ref;Amount;Payer\n" +
		"02-06-2025;INV-2025-00042;9.075,00;M\xfcller Conveyancing\n"

	rows, err := remittance.NewParser().Parse(strings.NewReader(file))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Müller Conveyancing", rows[0].Detail)
}
