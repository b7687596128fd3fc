package remittance

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onlyif-au/onlyif/internal/http/httputil"
	"github.com/onlyif-au/onlyif/internal/payment"
	"github.com/onlyif-au/onlyif/internal/remittance"
)

type Handler struct {
	parser     *remittance.Parser
	reconciler *payment.Service
}

func NewHandler(parser *remittance.Parser, reconciler *payment.Service) *Handler {
	return &Handler{parser: parser, reconciler: reconciler}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/import", h.importFile)
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_FORM", "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer file.Close()

	rows, err := h.parser.Parse(file)
	if err != nil {
		if errors.Is(err, remittance.ErrUnknownLayout) {
			httputil.WriteError(w, http.StatusBadRequest, "UNKNOWN_LAYOUT", err.Error())
			return
		}

		httputil.WriteError(w, http.StatusBadRequest, "INVALID_FILE", err.Error())

		return
	}

	lines := make([]payment.ReceiptLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, payment.ReceiptLine{
			Reference:   row.Reference,
			AmountCents: row.AmountCents,
			ReceivedAt:  row.Date,
			Detail:      row.Detail,
		})
	}

	report, err := h.reconciler.Reconcile(r.Context(), lines)
	if err != nil {
		slog.Error("reconciling remittance file", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")

		return
	}

	httputil.WriteJSON(w, http.StatusOK, report)
}
