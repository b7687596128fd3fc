package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/onlyif-au/onlyif/internal/auth"
	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/http/audit"
	"github.com/onlyif-au/onlyif/internal/http/httputil"
	"github.com/onlyif-au/onlyif/internal/http/invoice"
	"github.com/onlyif-au/onlyif/internal/http/payments"
	"github.com/onlyif-au/onlyif/internal/http/property"
	"github.com/onlyif-au/onlyif/internal/http/remittance"
	"github.com/onlyif-au/onlyif/internal/realtime"
)

func New(
	db *sql.DB,
	jwtSecret string,
	allowedOrigins []string,
	propertiesV1 *property.Handler,
	invoicesV1 *invoice.Handler,
	auditV1 *audit.Handler,
	paymentsV1 *payments.Handler,
	remittanceV1 *remittance.Handler,
	ws *realtime.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database unreachable")
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The websocket endpoint authenticates via ?token= since browsers cannot
	// set headers on websocket dials.
	router.With(auth.Middleware(jwtSecret)).Get("/ws", ws.ServeHTTP)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Route("/properties", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			propertiesV1.Routes(r)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			invoicesV1.Routes(r)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(auth.RequireRole(directory.RoleAdmin))
			auditV1.Routes(r)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(auth.RequireRole(directory.RoleAdmin))
			paymentsV1.Routes(r)
		})

		r.Route("/remittance", func(r chi.Router) {
			r.Use(auth.RequireRole(directory.RoleAdmin))
			remittanceV1.Routes(r)
		})
	})

	return router
}
