// Package encoding normalizes uploaded remittance files to UTF-8. Bank and
// trust-accounting exports arrive in whatever the originating desktop spoke:
// UTF-8 with or without a BOM, UTF-16 from Excel "Unicode Text" saves, or a
// legacy Windows code page.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	textenc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffLen is how much of the input the charset heuristics look at.
const sniffLen = 4096

// decoders maps chardet charset names to the decoder that handles them.
// ISO-8859-1 is decoded as Windows-1252, its superset; bank exports routinely
// use the 0x80-0x9F range the ISO charset leaves undefined.
var decoders = map[string]textenc.Encoding{
	"ISO-8859-1":   charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"UTF-16LE":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"UTF-16BE":     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

// NewUTF8Reader wraps r so that reads yield UTF-8 regardless of the input's
// original encoding. A BOM settles the question outright; otherwise valid
// UTF-8 passes through untouched, chardet picks from the known charsets, and
// anything unrecognized falls back to Windows-1252, which decodes every byte
// sequence. The worst case is mojibake rather than a refused file.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("sniffing input: %w", err)
	}

	if decoded, ok := bomReader(br, head); ok {
		return decoded, nil
	}

	if utf8.Valid(head) {
		return br, nil
	}

	result, err := chardet.NewTextDetector().DetectBest(head)
	if err == nil {
		if result.Charset == "UTF-8" {
			return br, nil
		}

		if enc, ok := decoders[result.Charset]; ok {
			return transform.NewReader(br, enc.NewDecoder()), nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}

// bomReader resolves the encoding from a byte-order mark, when one is there.
func bomReader(br *bufio.Reader, head []byte) (io.Reader, bool) {
	switch {
	case bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}):
		_, _ = br.Discard(3)
		return br, true
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}):
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), true
	case bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), true
	}

	return nil, false
}
