package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/auth"
	"github.com/onlyif-au/onlyif/internal/http/httputil"
	"github.com/onlyif-au/onlyif/internal/property"
	"github.com/onlyif-au/onlyif/internal/sales"
)

type Handler struct {
	sales *sales.Service
}

func NewHandler(salesSvc *sales.Service) *Handler {
	return &Handler{sales: salesSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/{id}/retry-billing", h.retryBilling)
}

func (h *Handler) retryBilling(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
		return
	}

	id, ok := httputil.ParseUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.sales.RetryBilling(r.Context(), id)
	if err != nil {
		writeRetryError(w, err)
		return
	}

	slog.Info("billing retried", "entry_id", id, "admin", identity.UserID)

	httputil.WriteJSON(w, http.StatusOK, toRetryResponse(result))
}

func writeRetryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sales.ErrNotRetryable):
		httputil.WriteError(w, http.StatusBadRequest, "NOT_RETRYABLE", err.Error())
	case errors.Is(err, audit.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "history entry not found")
	case errors.Is(err, property.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "property not found")
	default:
		slog.Error("billing retry failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

type retryEntryResponse struct {
	ID               uuid.UUID              `json:"id"`
	ProcessingStatus audit.ProcessingStatus `json:"processing_status"`
	InvoiceID        *uuid.UUID             `json:"invoice_id,omitempty"`
	InvoiceOutcome   *audit.InvoiceOutcome  `json:"invoice_outcome,omitempty"`
	ErrorLog         []audit.ErrorEntry     `json:"error_log,omitempty"`
}

type retryInvoiceResponse struct {
	InvoiceNumber string    `json:"invoice_number"`
	TotalCents    int64     `json:"total_cents"`
	DueDate       time.Time `json:"due_date"`
}

type retryResponse struct {
	Entry   retryEntryResponse    `json:"entry"`
	Invoice *retryInvoiceResponse `json:"invoice,omitempty"`
}

func toRetryResponse(result *sales.TransitionResult) retryResponse {
	resp := retryResponse{
		Entry: retryEntryResponse{
			ID:               result.Entry.ID,
			ProcessingStatus: result.Entry.ProcessingStatus,
			InvoiceID:        result.Entry.InvoiceID,
			InvoiceOutcome:   result.Entry.InvoiceOutcome,
			ErrorLog:         result.Entry.ErrorLog,
		},
	}

	if result.Invoice != nil {
		resp.Invoice = &retryInvoiceResponse{
			InvoiceNumber: result.Invoice.Number,
			TotalCents:    result.Invoice.TotalCents,
			DueDate:       result.Invoice.DueAt,
		}
	}

	return resp
}
