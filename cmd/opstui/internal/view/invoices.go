package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/onlyif-au/onlyif/internal/invoice"
	"github.com/onlyif-au/onlyif/internal/payment"
)

type invoicesState int

const (
	invoicesStateBrowse invoicesState = iota
	invoicesStatePay
)

type InvoicesModel struct {
	CommonModel
	invoices *invoice.Service
	payments *payment.Service

	state invoicesState
	table table.Model
	invs  []*invoice.Invoice
	form  *huh.Form

	statusFilterIdx int
	filter          invoice.ListFilter

	loading bool
	err     error
	status  string

	formAmount    string
	formReference string
}

func NewInvoicesModel(invoices *invoice.Service, payments *payment.Service) InvoicesModel {
	columns := []table.Column{
		{Title: "Number", Width: 15},
		{Title: "Category", Width: 22},
		{Title: "Status", Width: 10},
		{Title: "Total", Width: 12},
		{Title: "Paid", Width: 12},
		{Title: "Due", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return InvoicesModel{
		invoices: invoices,
		payments: payments,
		table:    t,
		filter:   invoice.ListFilter{},
	}
}

func (m InvoicesModel) Init() tea.Cmd {
	return m.loadInvoicesCmd()
}

func (m InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadInvoicesMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.invs = msg.invs
		m.refreshTable()
		return m, nil

	case paySavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error recording payment: %v", msg.err)
		} else {
			m.status = "Payment recorded"
		}
		m.state = invoicesStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadInvoicesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case invoicesStateBrowse:
		return m.updateBrowse(msg)
	case invoicesStatePay:
		return m.updatePay(msg)
	}

	return m, nil
}

func (m InvoicesModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			m.status = ""
			return m, m.loadInvoicesCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % 6
			m.applyFilter()
			return m, m.loadInvoicesCmd()
		case "p":
			return m.enterPayMode()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m InvoicesModel) enterPayMode() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.invs) {
		return m, nil
	}

	inv := m.invs[idx]
	m.formAmount = FormatAmount(inv.AmountDueCents())
	m.formReference = ""

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount (dollars)").
				Value(&m.formAmount).
				Validate(func(s string) error {
					cents, err := parseDollars(s)
					if err != nil {
						return err
					}
					if cents <= 0 {
						return fmt.Errorf("amount must be positive")
					}
					return nil
				}),

			huh.NewInput().
				Key("reference").
				Title("Reference (optional)").
				Placeholder("bank receipt ref").
				Value(&m.formReference),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = invoicesStatePay
	m.table.Blur()
	return m, m.form.Init()
}

func (m InvoicesModel) updatePay(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = invoicesStateBrowse
			m.form = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.savePaymentCmd()
}

func (m InvoicesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading invoices...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	statusLabels := []string{"All", "Pending", "Sent", "Paid", "Overdue", "Cancelled"}

	header := fmt.Sprintf("Filter: [s] Status: %s", activeStyle(statusLabels[m.statusFilterIdx]))

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		lipgloss.NewStyle().Faint(true).Render("Esc: back | r: refresh | s: status filter | p: record payment"),
	)

	if m.state == invoicesStatePay && m.form != nil {
		idx := m.table.Cursor()
		info := ""
		if idx >= 0 && idx < len(m.invs) {
			inv := m.invs[idx]
			info = fmt.Sprintf("%s\nDue: %s", inv.Number, FormatAmount(inv.AmountDueCents()))
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(fmt.Sprintf("Record Payment\n\n%s\n\n%s", info, m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func (m *InvoicesModel) applyFilter() {
	switch m.statusFilterIdx {
	case 1:
		m.filter.Status = new(invoice.StatusPending)
	case 2:
		m.filter.Status = new(invoice.StatusSent)
	case 3:
		m.filter.Status = new(invoice.StatusPaid)
	case 4:
		m.filter.Status = new(invoice.StatusOverdue)
	case 5:
		m.filter.Status = new(invoice.StatusCancelled)
	default:
		m.filter.Status = nil
	}
}

func (m *InvoicesModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.invs))
	for _, inv := range m.invs {
		rows = append(rows, table.Row{
			inv.Number,
			string(inv.Category),
			string(inv.Status),
			FormatAmount(inv.TotalCents),
			FormatAmount(inv.AmountPaidCents),
			FormatDate(inv.DueAt),
		})
	}
	m.table.SetRows(rows)
}

func parseDollars(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(s, "$")))
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// Messages

type loadInvoicesMsg struct {
	invs []*invoice.Invoice
	err  error
}

func (m InvoicesModel) loadInvoicesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		invs, err := m.invoices.List(ctx, m.filter)
		return loadInvoicesMsg{invs: invs, err: err}
	}
}

type paySavedMsg struct {
	err error
}

func (m InvoicesModel) savePaymentCmd() tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.invs) {
		return nil
	}

	inv := m.invs[idx]

	cents, err := parseDollars(m.formAmount)
	if err != nil {
		return func() tea.Msg { return paySavedMsg{err: err} }
	}

	reference := m.formReference

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		updated, err := m.invoices.RecordPayment(ctx, invoice.RecordPaymentParams{
			InvoiceID:   inv.ID,
			AmountCents: cents,
			Method:      "manual",
			Reference:   reference,
		})
		if err != nil {
			return paySavedMsg{err: err}
		}

		if _, err := m.payments.NoteReceipt(ctx, updated, cents, reference); err != nil {
			return paySavedMsg{err: fmt.Errorf("payment recorded, reconciliation mirror failed: %w", err)}
		}

		return paySavedMsg{}
	}
}
