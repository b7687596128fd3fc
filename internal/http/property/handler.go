package property

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/auth"
	"github.com/onlyif-au/onlyif/internal/http/httputil"
	"github.com/onlyif-au/onlyif/internal/property"
	"github.com/onlyif-au/onlyif/internal/sales"
)

type Handler struct {
	properties *property.Service
	sales      *sales.Service
	history    *audit.Service
}

func NewHandler(properties *property.Service, salesSvc *sales.Service, history *audit.Service) *Handler {
	return &Handler{properties: properties, sales: salesSvc, history: history}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{idOrSlug}", h.get)
	r.Get("/{idOrSlug}/history", h.listHistory)
	r.Patch("/{idOrSlug}/status", h.updateSalesStatus)
}

type settlementDetailsRequest struct {
	SettlementDate      *time.Time `json:"settlement_date"`
	DepositHeldBy       string     `json:"deposit_held_by"`
	DepositReleaseTerms string     `json:"deposit_release_terms"`
}

type updateStatusRequest struct {
	Status            property.SalesStatus      `json:"status"`
	ChangeReason      string                    `json:"change_reason"`
	SettlementDetails *settlementDetailsRequest `json:"settlement_details"`
	SellerID          *uuid.UUID                `json:"seller_id"`
	BuyerID           *uuid.UUID                `json:"buyer_id"`
}

func (h *Handler) updateSalesStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
		return
	}

	var req updateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	treq := sales.TransitionRequest{
		PropertyIDOrSlug: chi.URLParam(r, "idOrSlug"),
		Status:           req.Status,
		Actor:            sales.Actor{ID: identity.UserID, Name: identity.Name, Role: identity.Role},
		ChangeReason:     req.ChangeReason,
		SellerID:         req.SellerID,
		BuyerID:          req.BuyerID,
		Meta: sales.RequestMeta{
			RequestID:  middleware.GetReqID(r.Context()),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		},
	}

	if req.SettlementDetails != nil {
		treq.Settlement = &sales.SettlementDetails{
			SettlementDate:      req.SettlementDetails.SettlementDate,
			DepositHeldBy:       req.SettlementDetails.DepositHeldBy,
			DepositReleaseTerms: req.SettlementDetails.DepositReleaseTerms,
		}
	}

	result, err := h.sales.Transition(r.Context(), treq)
	if err != nil {
		writeSalesError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTransitionResponse(result))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	prop, err := h.properties.GetByIDOrSlug(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		writePropertyError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(prop))
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	prop, err := h.properties.GetByIDOrSlug(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		writePropertyError(w, err)
		return
	}

	entries, err := h.history.ListByProperty(r.Context(), prop.ID)
	if err != nil {
		slog.Error("listing status history", "property_id", prop.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")

		return
	}

	httputil.WriteJSON(w, http.StatusOK, toHistoryResponseList(entries))
}

func writePropertyError(w http.ResponseWriter, err error) {
	if errors.Is(err, property.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "property not found")
		return
	}

	slog.Error("fetching property", "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

func writeSalesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sales.ErrInvalidStatus):
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_STATUS", err.Error())
	case errors.Is(err, sales.ErrMissingSettlement):
		httputil.WriteError(w, http.StatusBadRequest, "MISSING_SETTLEMENT_DETAILS", err.Error())
	case errors.Is(err, sales.ErrOutOfOrder):
		httputil.WriteError(w, http.StatusBadRequest, "OUT_OF_ORDER", err.Error())
	case errors.Is(err, sales.ErrSelfDealing):
		httputil.WriteError(w, http.StatusForbidden, "SELF_DEALING", err.Error())
	case errors.Is(err, sales.ErrNotAuthorized):
		httputil.WriteError(w, http.StatusForbidden, "NOT_AUTHORIZED", err.Error())
	case errors.Is(err, property.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "property not found")
	case errors.Is(err, sales.ErrListingClosed):
		httputil.WriteError(w, http.StatusConflict, "LISTING_CLOSED", err.Error())
	default:
		slog.Error("sales status transition failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
