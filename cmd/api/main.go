package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onlyif-au/onlyif/internal/audit"
	auditStore "github.com/onlyif-au/onlyif/internal/audit/store"
	"github.com/onlyif-au/onlyif/internal/config"
	"github.com/onlyif-au/onlyif/internal/database"
	"github.com/onlyif-au/onlyif/internal/directory"
	directoryStore "github.com/onlyif-au/onlyif/internal/directory/store"
	onlyifHttp "github.com/onlyif-au/onlyif/internal/http"
	auditHandler "github.com/onlyif-au/onlyif/internal/http/audit"
	invoiceHandler "github.com/onlyif-au/onlyif/internal/http/invoice"
	paymentsHandler "github.com/onlyif-au/onlyif/internal/http/payments"
	propertyHandler "github.com/onlyif-au/onlyif/internal/http/property"
	remittanceHandler "github.com/onlyif-au/onlyif/internal/http/remittance"
	"github.com/onlyif-au/onlyif/internal/invoice"
	invoiceStore "github.com/onlyif-au/onlyif/internal/invoice/store"
	"github.com/onlyif-au/onlyif/internal/notify"
	notifyStore "github.com/onlyif-au/onlyif/internal/notify/store"
	"github.com/onlyif-au/onlyif/internal/payment"
	paymentStore "github.com/onlyif-au/onlyif/internal/payment/store"
	"github.com/onlyif-au/onlyif/internal/property"
	propertyStore "github.com/onlyif-au/onlyif/internal/property/store"
	"github.com/onlyif-au/onlyif/internal/realtime"
	"github.com/onlyif-au/onlyif/internal/remittance"
	"github.com/onlyif-au/onlyif/internal/sales"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()

	var (
		directoryService = directory.NewService(directoryStore.New(db))
		propertyService  = property.NewService(propertyStore.New(db))
		invoiceService   = invoice.NewService(invoiceStore.New(db))
		auditService     = audit.NewService(auditStore.New(db))
		paymentService   = payment.NewService(paymentStore.New(db), invoiceService)
	)

	sinks := []notify.Sink{notify.NewRealtimeSink(hub)}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, cfg.Notify.WebhookToken))
	}

	dispatcher := notify.NewDispatcher(notifyStore.New(db), invoiceService, propertyService, directoryService, sinks, notify.Options{
		MaxAttempts:  cfg.Notify.MaxAttempts,
		PollInterval: cfg.Notify.PollInterval,
	})
	dispatcher.Start(ctx)

	salesService := sales.NewService(propertyService, invoiceService, auditService, paymentService, dispatcher, sales.Options{
		StrictProgression: cfg.Sales.StrictProgression,
	})

	var (
		propertiesH = propertyHandler.NewHandler(propertyService, salesService, auditService)
		invoicesH   = invoiceHandler.NewHandler(invoiceService, paymentService)
		auditH      = auditHandler.NewHandler(salesService)
		paymentsH   = paymentsHandler.NewHandler(paymentService)
		remittanceH = remittanceHandler.NewHandler(remittance.NewParser(), paymentService)
		wsH         = realtime.NewHandler(hub, cfg.CORS.AllowedOrigins)
	)

	router := onlyifHttp.New(
		db,
		cfg.Auth.JWTSecret,
		cfg.CORS.AllowedOrigins,
		propertiesH,
		invoicesH,
		auditH,
		paymentsH,
		remittanceH,
		wsH,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("starting server", "addr", srv.Addr, "env", cfg.App.Env)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
