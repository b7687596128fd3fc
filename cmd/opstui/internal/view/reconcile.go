package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onlyif-au/onlyif/internal/payment"
)

type ReconcileModel struct {
	CommonModel
	payments *payment.Service

	table   table.Model
	records []*payment.Record

	statusFilterIdx int
	filter          payment.ListFilter

	loading bool
	err     error
}

func NewReconcileModel(payments *payment.Service) ReconcileModel {
	columns := []table.Column{
		{Title: "Created", Width: 17},
		{Title: "Invoice", Width: 10},
		{Title: "Property", Width: 10},
		{Title: "Expected", Width: 12},
		{Title: "Received", Width: 12},
		{Title: "Status", Width: 11},
		{Title: "Reference", Width: 24},
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

	return ReconcileModel{
		payments: payments,
		table:    t,
		filter:   payment.ListFilter{},
	}
}

func (m ReconcileModel) Init() tea.Cmd {
	return m.loadRecordsCmd()
}

func (m ReconcileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadRecordsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.records = msg.records
		m.refreshTable()
		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadRecordsCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % 4
			m.applyFilter()
			return m, m.loadRecordsCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ReconcileModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading payment records...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	statusLabels := []string{"All", "Awaiting", "Partial", "Reconciled"}

	var outstanding int64
	for _, rec := range m.records {
		if rec.ExpectedCents > rec.ReceivedCents {
			outstanding += rec.ExpectedCents - rec.ReceivedCents
		}
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | Outstanding: %s",
		activeStyle(statusLabels[m.statusFilterIdx]),
		FormatAmount(outstanding),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		lipgloss.NewStyle().Faint(true).Render("Esc: back | r: refresh | s: status filter"),
	)

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *ReconcileModel) applyFilter() {
	switch m.statusFilterIdx {
	case 1:
		m.filter.Status = new(payment.StatusAwaiting)
	case 2:
		m.filter.Status = new(payment.StatusPartial)
	case 3:
		m.filter.Status = new(payment.StatusReconciled)
	default:
		m.filter.Status = nil
	}
}

func (m *ReconcileModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.records))
	for _, rec := range m.records {
		rows = append(rows, table.Row{
			FormatDateTime(rec.CreatedAt),
			ShortID(rec.InvoiceID),
			ShortID(rec.PropertyID),
			FormatAmount(rec.ExpectedCents),
			FormatAmount(rec.ReceivedCents),
			string(rec.Status),
			rec.MatchedReference,
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadRecordsMsg struct {
	records []*payment.Record
	err     error
}

func (m ReconcileModel) loadRecordsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		records, err := m.payments.List(ctx, m.filter)
		return loadRecordsMsg{records: records, err: err}
	}
}
