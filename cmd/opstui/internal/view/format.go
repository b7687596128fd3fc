package view

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dbTimeout = 5 * time.Second

// FormatAmount formats an amount stored as cents into a human-readable string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100.0)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDateTime formats a time.Time with minute precision for log-style rows.
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// ShortID renders the first segment of a UUID, enough to eyeball a row.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
