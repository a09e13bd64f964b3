// Package dashboard renders overdue deliverables and upcoming project
// deadlines and sends reminders for them.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/alerts"
	"github.com/nhle/epikom-hub/internal/keys"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/theme"
)

// AlertSource computes alerts and sends reminders. *alerts.Aggregator
// satisfies it.
type AlertSource interface {
	ComputeAlerts(ctx context.Context, now time.Time) (alerts.Alerts, error)
	SendReminder(ctx context.Context, d model.OverdueDeliverable) alerts.Result
	SendReminders(ctx context.Context, items []model.OverdueDeliverable) alerts.Summary
}

// AlertsLoadedMsg carries a freshly computed snapshot.
type AlertsLoadedMsg struct {
	Alerts alerts.Alerts
	Err    error
}

// RemindersSentMsg reports the outcome of a manual send.
type RemindersSentMsg struct {
	Summary alerts.Summary
}

// Model is the alert dashboard view.
type Model struct {
	source  AlertSource
	keys    *keys.KeyMap
	now     func() time.Time
	alerts  alerts.Alerts
	cursor  int
	loading bool
	sending bool
	status  string
	err     error
	width   int
	height  int
}

// New creates a dashboard model.
func New(source AlertSource, k *keys.KeyMap, width, height int) Model {
	return Model{
		source: source,
		keys:   k,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Init loads the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load returns a command computing alerts at the current time.
func (m Model) Load() tea.Cmd {
	src, now := m.source, m.now()
	return func() tea.Msg {
		a, err := src.ComputeAlerts(context.Background(), now)
		return AlertsLoadedMsg{Alerts: a, Err: err}
	}
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case AlertsLoadedMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Err == nil {
			m.alerts = msg.Alerts
		}
		m.cursor = min(m.cursor, max(len(m.alerts.Overdue)-1, 0))
		return m, nil

	case RemindersSentMsg:
		m.sending = false
		m.status = SummaryLine(msg.Summary)
		return m, m.Load()

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.alerts.Overdue)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.Load()

	case key.Matches(msg, m.keys.SendReminder):
		d, ok := m.Selected()
		if !ok || m.sending {
			return m, nil
		}
		m.sending = true
		src := m.source
		return m, func() tea.Msg {
			var sum alerts.Summary
			sum.Merge(alerts.Summary{Results: []alerts.Result{src.SendReminder(context.Background(), d)}})
			return RemindersSentMsg{Summary: sum}
		}

	case key.Matches(msg, m.keys.SendAll):
		if len(m.alerts.Overdue) == 0 || m.sending {
			return m, nil
		}
		m.sending = true
		src := m.source
		items := append([]model.OverdueDeliverable(nil), m.alerts.Overdue...)
		return m, func() tea.Msg {
			return RemindersSentMsg{Summary: src.SendReminders(context.Background(), items)}
		}
	}
	return m, nil
}

// Selected returns the overdue deliverable under the cursor.
func (m Model) Selected() (model.OverdueDeliverable, bool) {
	if m.cursor < 0 || m.cursor >= len(m.alerts.Overdue) {
		return model.OverdueDeliverable{}, false
	}
	return m.alerts.Overdue[m.cursor], true
}

// SummaryLine renders a Summary for the status line.
func SummaryLine(s alerts.Summary) string {
	parts := []string{fmt.Sprintf("%d sent", s.Sent)}
	if s.SkippedDuplicate > 0 {
		parts = append(parts, fmt.Sprintf("%d already sent", s.SkippedDuplicate))
	}
	if s.SkippedNoAccount > 0 {
		parts = append(parts, fmt.Sprintf("%d without client account", s.SkippedNoAccount))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	return "Reminders: " + strings.Join(parts, ", ")
}

// View renders the dashboard.
func (m Model) View() string {
	if m.err != nil && len(m.alerts.Overdue) == 0 && len(m.alerts.Upcoming) == 0 {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			theme.ErrorStyle.Render("Could not load alerts: " + m.err.Error()),
		)
	}

	section := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginTop(1)
	var b strings.Builder

	b.WriteString(section.Render(fmt.Sprintf("Overdue deliverables (%d)", m.alerts.TotalOverdue)))
	b.WriteString("\n")
	if len(m.alerts.Overdue) == 0 {
		b.WriteString(theme.DimmedStyle.Render("  Nothing overdue."))
		b.WriteString("\n")
	}
	for i, d := range m.alerts.Overdue {
		line := fmt.Sprintf("%s %s · %s · %s late",
			theme.SeverityStyle(string(d.Severity)).Render("●"),
			d.Name, d.ProjectName, alerts.DaysLabel(d.DaysOverdue))
		if d.ClientName != nil {
			line += theme.DimmedStyle.Render(" · " + *d.ClientName)
		}
		if i == m.cursor {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString(section.Render(fmt.Sprintf("Upcoming deadlines (%d)", m.alerts.TotalUpcoming)))
	b.WriteString("\n")
	if len(m.alerts.Upcoming) == 0 {
		b.WriteString(theme.DimmedStyle.Render("  No deadlines this week."))
		b.WriteString("\n")
	}
	for _, u := range m.alerts.Upcoming {
		line := fmt.Sprintf("%s %s ends %s · %d%%",
			theme.SeverityStyle(string(u.Severity)).Render("●"),
			u.Name, alerts.DaysLabel(u.DaysUntil), u.Progress)
		b.WriteString(theme.ListItemStyle.Render(line))
		b.WriteString("\n")
	}

	switch {
	case m.sending:
		b.WriteString("\n" + theme.HelpStyle.Render("Sending reminders..."))
	case m.status != "":
		b.WriteString("\n" + theme.HelpStyle.Render(m.status))
	}

	return lipgloss.NewStyle().Padding(0, 1).Width(m.width).Render(b.String())
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
