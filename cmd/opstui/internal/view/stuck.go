package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/onlyif-au/onlyif/internal/audit"
	"github.com/onlyif-au/onlyif/internal/sales"
)

type stuckState int

const (
	stuckStateBrowse stuckState = iota
	stuckStateConfirm
)

// staleAfter is how long a pending or processing entry may sit before it
// counts as stuck.
const staleAfter = 10 * time.Minute

type StuckModel struct {
	CommonModel
	audits *audit.Service
	sales  *sales.Service

	state   stuckState
	table   table.Model
	entries []*audit.Entry
	form    *huh.Form

	loading bool
	err     error
	status  string

	formConfirm bool
}

func NewStuckModel(audits *audit.Service, salesSvc *sales.Service) StuckModel {
	columns := []table.Column{
		{Title: "Created", Width: 17},
		{Title: "Entry", Width: 10},
		{Title: "Property", Width: 10},
		{Title: "Change", Width: 30},
		{Title: "Processing", Width: 12},
		{Title: "Last Error", Width: 40},
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

	return StuckModel{
		audits: audits,
		sales:  salesSvc,
		table:  t,
	}
}

func (m StuckModel) Init() tea.Cmd {
	return m.loadEntriesCmd()
}

func (m StuckModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadStuckMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.entries = msg.entries
		m.refreshTable()
		return m, nil

	case retryDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Retry failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Billing retried: %s", msg.outcome)
		}
		m.state = stuckStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadEntriesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case stuckStateBrowse:
		return m.updateBrowse(msg)
	case stuckStateConfirm:
		return m.updateConfirm(msg)
	}

	return m, nil
}

func (m StuckModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			m.status = ""
			return m, m.loadEntriesCmd()
		case "enter":
			return m.enterConfirm()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m StuckModel) enterConfirm() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.entries) {
		return m, nil
	}

	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("retry").
				Title("Retry billing for this settlement?").
				Affirmative("Retry").
				Negative("Cancel").
				Value(&m.formConfirm),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = stuckStateConfirm
	m.table.Blur()
	return m, m.form.Init()
}

func (m StuckModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = stuckStateBrowse
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

	if !m.formConfirm {
		m.state = stuckStateBrowse
		m.form = nil
		m.table.Focus()
		return m, nil
	}

	return m, m.retryCmd()
}

func (m StuckModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading stuck transitions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	header := fmt.Sprintf("Transitions needing attention: %d", len(m.entries))

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		lipgloss.NewStyle().Faint(true).Render("Esc: back | r: refresh | Enter: retry billing"),
	)

	if m.state == stuckStateConfirm && m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *StuckModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		lastErr := ""
		if n := len(e.ErrorLog); n > 0 {
			lastErr = e.ErrorLog[n-1].Message
		}

		rows = append(rows, table.Row{
			FormatDateTime(e.CreatedAt),
			ShortID(e.ID),
			ShortID(e.PropertyID),
			formatChange(e),
			string(e.ProcessingStatus),
			lastErr,
		})
	}
	m.table.SetRows(rows)
}

func formatChange(e *audit.Entry) string {
	prev := string(e.PreviousStatus)
	if prev == "" {
		prev = "none"
	}

	return fmt.Sprintf("%s -> %s", prev, e.NewStatus)
}

// Messages

type loadStuckMsg struct {
	entries []*audit.Entry
	err     error
}

func (m StuckModel) loadEntriesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		entries, err := m.audits.ListAttention(ctx, time.Now().UTC().Add(-staleAfter))
		return loadStuckMsg{entries: entries, err: err}
	}
}

type retryDoneMsg struct {
	outcome string
	err     error
}

func (m StuckModel) retryCmd() tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.entries) {
		return nil
	}

	entry := m.entries[idx]

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		result, err := m.sales.RetryBilling(ctx, entry.ID)
		if err != nil {
			return retryDoneMsg{err: err}
		}

		outcome := string(result.Entry.ProcessingStatus)
		if result.Invoice != nil {
			outcome = fmt.Sprintf("%s (%s)", outcome, result.Invoice.Number)
		}

		return retryDoneMsg{outcome: outcome}
	}
}
