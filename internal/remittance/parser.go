package remittance

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	enc "github.com/onlyif-au/onlyif/internal/encoding"
)

// ErrUnknownLayout reports that no known remittance format matched the file.
var ErrUnknownLayout = errors.New("no known remittance layout found")

// Parser reads remittance files and produces receipt rows. The file format
// is auto-detected: the delimiter by trying each profile's, the layout by
// matching column headers against the known profiles, and the character
// encoding up front.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]Row, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	// A file split on the wrong delimiter collapses each line into one cell,
	// so only the right delimiter can produce a header match.
	for _, comma := range []rune{';', ','} {
		rows, err := readCSV(bytes.NewReader(data), comma)
		if err != nil {
			continue
		}

		profile, cols, headerIdx := detectProfile(rows, comma)
		if profile != nil {
			return parseRows(profile, cols, rows[headerIdx+1:]), nil
		}
	}

	return nil, ErrUnknownLayout
}

func readCSV(r io.Reader, comma rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

// detectProfile scans rows for a header matching a known profile. Remittance
// files often open with account metadata before the real header, so every
// row is a candidate.
func detectProfile(rows [][]string, comma rune) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if profiles[i].Comma == comma && matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows extracts receipt rows using the matched profile. Rows whose date
// cell does not parse are footers or blank padding and are skipped; rows with
// an unreadable amount are skipped the same way.
func parseRows(p *Profile, cols colIndex, rows [][]string) []Row {
	dateIdx := cols[p.DateCol]
	refIdx := cols[p.RefCol]
	amountIdx := cols[p.AmountCol]

	detailIdx := -1
	if idx, ok := cols[p.DetailCol]; ok {
		detailIdx = idx
	}

	var out []Row

	for _, row := range rows {
		date, ok := parseDate(p.DateFormat, row, dateIdx)
		if !ok {
			continue
		}

		amountStr := cellValue(row, amountIdx)
		if amountStr == "" {
			continue
		}

		cents, err := parseAmount(p.Amounts, amountStr)
		if err != nil {
			continue
		}

		out = append(out, Row{
			Date:        date,
			Reference:   cellValue(row, refIdx),
			AmountCents: cents,
			Detail:      cellValue(row, detailIdx),
		})
	}

	return out
}

func parseDate(layout string, row []string, idx int) (time.Time, bool) {
	s := cellValue(row, idx)
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
