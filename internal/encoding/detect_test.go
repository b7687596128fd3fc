package encoding_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlyif-au/onlyif/internal/encoding"
)

func decode(t *testing.T, input []byte) string {
	t.Helper()

	r, err := encoding.NewUTF8Reader(bytes.NewReader(input))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(got)
}

func TestNewUTF8Reader_UTF8Passthrough(t *testing.T) {
	input := "Receipt Date;Invoice Ref;Amount;Payer\n02-06-2025;INV-2025-00042;9.075,00;Müller & Söhne\n"

	assert.Equal(t, input, decode(t, []byte(input)))
}

func TestNewUTF8Reader_StripsUTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, "Date,Reference,Amount\n"...)

	assert.Equal(t, "Date,Reference,Amount\n", decode(t, input))
}

func TestNewUTF8Reader_Windows1252(t *testing.T) {
	// "Payer: Müller" with ü as the single Windows-1252 byte 0xFC.
	input := []byte{'P', 'a', 'y', 'e', 'r', ':', ' ', 'M', 0xFC, 'l', 'l', 'e', 'r', '\n'}

	assert.Equal(t, "Payer: Müller\n", decode(t, input))
}

func TestNewUTF8Reader_UTF16LE(t *testing.T) {
	// "Ref\n" as Excel writes it: UTF-16 little endian behind a BOM.
	input := []byte{0xFF, 0xFE, 'R', 0x00, 'e', 0x00, 'f', 0x00, '\n', 0x00}

	assert.Equal(t, "Ref\n", decode(t, input))
}

func TestNewUTF8Reader_UTF16BE(t *testing.T) {
	input := []byte{0xFE, 0xFF, 0x00, 'R', 0x00, 'e', 0x00, 'f', 0x00, '\n'}

	assert.Equal(t, "Ref\n", decode(t, input))
}

func TestNewUTF8Reader_EmptyInput(t *testing.T) {
	assert.Empty(t, decode(t, nil))
}
