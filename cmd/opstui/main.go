package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/onlyif-au/onlyif/cmd/opstui/internal/view"
	"github.com/onlyif-au/onlyif/internal/audit"
	auditStore "github.com/onlyif-au/onlyif/internal/audit/store"
	"github.com/onlyif-au/onlyif/internal/config"
	"github.com/onlyif-au/onlyif/internal/database"
	"github.com/onlyif-au/onlyif/internal/directory"
	directoryStore "github.com/onlyif-au/onlyif/internal/directory/store"
	"github.com/onlyif-au/onlyif/internal/invoice"
	invoiceStore "github.com/onlyif-au/onlyif/internal/invoice/store"
	"github.com/onlyif-au/onlyif/internal/notify"
	notifyStore "github.com/onlyif-au/onlyif/internal/notify/store"
	"github.com/onlyif-au/onlyif/internal/payment"
	paymentStore "github.com/onlyif-au/onlyif/internal/payment/store"
	"github.com/onlyif-au/onlyif/internal/property"
	propertyStore "github.com/onlyif-au/onlyif/internal/property/store"
	"github.com/onlyif-au/onlyif/internal/sales"
)

type model struct {
	auditService   *audit.Service
	invoiceService *invoice.Service
	paymentService *payment.Service
	salesService   *sales.Service

	currentView View

	stuckView     view.StuckModel
	invoicesView  view.InvoicesModel
	reconcileView view.ReconcileModel
}

type View int

const (
	ViewMenu      View = 0
	ViewStuck     View = 1
	ViewInvoices  View = 2
	ViewReconcile View = 3
)

func initialModel() model {
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

	propertySvc := property.NewService(propertyStore.New(db))
	invoiceSvc := invoice.NewService(invoiceStore.New(db))
	auditSvc := audit.NewService(auditStore.New(db))
	paymentSvc := payment.NewService(paymentStore.New(db), invoiceSvc)
	directorySvc := directory.NewService(directoryStore.New(db))

	// The terminal only enqueues notifications; the API worker delivers them.
	dispatcher := notify.NewDispatcher(notifyStore.New(db), invoiceSvc, propertySvc, directorySvc, nil, notify.Options{})

	salesSvc := sales.NewService(propertySvc, invoiceSvc, auditSvc, paymentSvc, dispatcher, sales.Options{
		StrictProgression: cfg.Sales.StrictProgression,
	})

	return model{
		auditService:   auditSvc,
		invoiceService: invoiceSvc,
		paymentService: paymentSvc,
		salesService:   salesSvc,
		currentView:    ViewMenu,
		stuckView:      view.NewStuckModel(auditSvc, salesSvc),
		invoicesView:   view.NewInvoicesModel(invoiceSvc, paymentSvc),
		reconcileView:  view.NewReconcileModel(paymentSvc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewStuck
				m.stuckView = view.NewStuckModel(m.auditService, m.salesService)

				return m, m.stuckView.Init()
			case "2":
				m.currentView = ViewInvoices
				m.invoicesView = view.NewInvoicesModel(m.invoiceService, m.paymentService)

				return m, m.invoicesView.Init()
			case "3":
				m.currentView = ViewReconcile
				m.reconcileView = view.NewReconcileModel(m.paymentService)

				return m, m.reconcileView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewStuck:
		var newModel tea.Model
		newModel, cmd = m.stuckView.Update(msg)
		m.stuckView = newModel.(view.StuckModel)
	case ViewInvoices:
		var newModel tea.Model
		newModel, cmd = m.invoicesView.Update(msg)
		m.invoicesView = newModel.(view.InvoicesModel)
	case ViewReconcile:
		var newModel tea.Model
		newModel, cmd = m.reconcileView.Update(msg)
		m.reconcileView = newModel.(view.ReconcileModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"OnlyIf Ops\n\n" +
				"1. Stuck Transitions\n" +
				"2. Invoices\n" +
				"3. Reconciliation\n\n" +
				"q. Quit",
		)
	case ViewStuck:
		return m.stuckView.View()
	case ViewInvoices:
		return m.invoicesView.View()
	case ViewReconcile:
		return m.reconcileView.View()
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
