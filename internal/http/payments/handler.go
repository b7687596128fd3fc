package payments

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/http/httputil"
	"github.com/onlyif-au/onlyif/internal/payment"
)

type Handler struct {
	payments *payment.Service
}

func NewHandler(payments *payment.Service) *Handler {
	return &Handler{payments: payments}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/records", h.listRecords)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	var filter payment.ListFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := payment.Status(raw)
		filter.Status = &status
	}

	if raw := r.URL.Query().Get("property_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", "property_id is not a valid UUID")
			return
		}

		filter.PropertyID = &id
	}

	records, err := h.payments.List(r.Context(), filter)
	if err != nil {
		slog.Error("listing payment records", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")

		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRecordResponseList(records))
}

type recordResponse struct {
	ID               uuid.UUID      `json:"id"`
	InvoiceID        uuid.UUID      `json:"invoice_id"`
	PropertyID       uuid.UUID      `json:"property_id"`
	ExpectedCents    int64          `json:"expected_cents"`
	ReceivedCents    int64          `json:"received_cents"`
	Status           payment.Status `json:"status"`
	MatchedReference string         `json:"matched_reference,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

func toRecordResponseList(records []*payment.Record) []recordResponse {
	resp := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, recordResponse{
			ID:               rec.ID,
			InvoiceID:        rec.InvoiceID,
			PropertyID:       rec.PropertyID,
			ExpectedCents:    rec.ExpectedCents,
			ReceivedCents:    rec.ReceivedCents,
			Status:           rec.Status,
			MatchedReference: rec.MatchedReference,
			CreatedAt:        rec.CreatedAt,
			UpdatedAt:        rec.UpdatedAt,
		})
	}

	return resp
}
