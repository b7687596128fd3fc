package invoice

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/auth"
	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/http/httputil"
	"github.com/onlyif-au/onlyif/internal/invoice"
	"github.com/onlyif-au/onlyif/internal/payment"
)

type Handler struct {
	invoices *invoice.Service
	payments *payment.Service
}

func NewHandler(invoices *invoice.Service, payments *payment.Service) *Handler {
	return &Handler{invoices: invoices, payments: payments}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(directory.RoleAdmin))
		r.Post("/{id}/payments", h.recordPayment)
		r.Post("/{id}/cancel", h.cancel)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
		return
	}

	var filter invoice.ListFilter

	if raw := r.URL.Query().Get("property_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", "property_id is not a valid UUID")
			return
		}

		filter.PropertyID = &id
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := invoice.Status(raw)
		filter.Status = &status
	}

	if raw := r.URL.Query().Get("category"); raw != "" {
		category := invoice.Category(raw)
		filter.Category = &category
	}

	filter.Overdue = r.URL.Query().Get("overdue") == "true"

	// Non-admins only ever see invoices they are a party to.
	if identity.Role != directory.RoleAdmin {
		filter.PartyID = &identity.UserID
	}

	invs, err := h.invoices.List(r.Context(), filter)
	if err != nil {
		slog.Error("listing invoices", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")

		return
	}

	httputil.WriteJSON(w, http.StatusOK, toResponseList(invs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
		return
	}

	id, ok := httputil.ParseUUID(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		writeInvoiceError(w, err)
		return
	}

	if identity.Role != directory.RoleAdmin && !isParty(inv, identity.UserID) {
		httputil.WriteError(w, http.StatusForbidden, "NOT_AUTHORIZED", "not a party to this invoice")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toResponse(inv))
}

type recordPaymentRequest struct {
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference"`
	ReceivedAt  time.Time `json:"received_at"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "id")
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	if req.AmountCents <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount_cents must be positive")
		return
	}

	method := req.Method
	if method == "" {
		method = "manual"
	}

	inv, err := h.invoices.RecordPayment(r.Context(), invoice.RecordPaymentParams{
		InvoiceID:   id,
		AmountCents: req.AmountCents,
		Method:      method,
		Reference:   req.Reference,
		ReceivedAt:  req.ReceivedAt,
	})
	if err != nil {
		writeInvoiceError(w, err)
		return
	}

	if _, err := h.payments.NoteReceipt(r.Context(), inv, req.AmountCents, req.Reference); err != nil {
		slog.Warn("mirroring receipt onto payment record", "invoice", inv.Number, "error", err)
	}

	httputil.WriteJSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.invoices.Cancel(r.Context(), id); err != nil {
		writeInvoiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func isParty(inv *invoice.Invoice, userID uuid.UUID) bool {
	if inv.CounterpartyID == userID {
		return true
	}

	return inv.AgentID != nil && *inv.AgentID == userID
}

func writeInvoiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found")
	case errors.Is(err, invoice.ErrCancelled):
		httputil.WriteError(w, http.StatusConflict, "INVOICE_CANCELLED", err.Error())
	case errors.Is(err, invoice.ErrPaid):
		httputil.WriteError(w, http.StatusConflict, "ALREADY_PAID", err.Error())
	default:
		slog.Error("invoice operation failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
