package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-00001", invoiceNumber(2025, 1))
	assert.Equal(t, "INV-2025-00042", invoiceNumber(2025, 42))
	assert.Equal(t, "INV-2025-10000", invoiceNumber(2025, 10000))

	// The sequence starts over with the calendar year.
	assert.Equal(t, "INV-2026-00001", invoiceNumber(2026, 1))

	// Padding widens past five digits instead of truncating.
	assert.Equal(t, "INV-2025-123456", invoiceNumber(2025, 123456))
}

func TestNumberLockKey(t *testing.T) {
	assert.Equal(t, numberLockKey(2025), numberLockKey(2025))
	assert.NotEqual(t, numberLockKey(2025), numberLockKey(2026))
}
