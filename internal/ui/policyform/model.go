// Package policyform edits a project's reminder policy. Non-admins see
// the policy read-only.
package policyform

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/reminder"
	"github.com/nhle/epikom-hub/internal/theme"
)

// Source reads and writes reminder policies. *reminder.Service satisfies it.
type Source interface {
	Policy(ctx context.Context, projectID string) (model.ReminderPolicy, error)
	UpdatePolicy(ctx context.Context, actor model.Profile, projectID string, policy model.ReminderPolicy) error
}

// LoadedMsg carries the policy of the current project.
type LoadedMsg struct {
	ProjectID string
	Policy    model.ReminderPolicy
	Err       error
}

// SavedMsg reports the outcome of a save.
type SavedMsg struct {
	Err error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	policy model.ReminderPolicy
}

// Model is the reminder settings view.
type Model struct {
	source    Source
	actor     model.Profile
	projectID string
	project   string

	form   *huh.Form
	fb     *formBindings
	loaded bool
	status string
	err    error

	width  int
	height int
}

// New creates a settings view for actor.
func New(source Source, actor model.Profile, width, height int) Model {
	return Model{
		source: source,
		actor:  actor,
		fb:     &formBindings{policy: reminder.Default()},
		width:  width,
		height: height,
	}
}

// SetProject switches the view to a project and loads its policy.
func (m *Model) SetProject(projectID, projectName string) tea.Cmd {
	m.projectID = projectID
	m.project = projectName
	m.loaded = false
	m.form = nil
	m.status, m.err = "", nil

	src := m.source
	return func() tea.Msg {
		p, err := src.Policy(context.Background(), projectID)
		return LoadedMsg{ProjectID: projectID, Policy: p, Err: err}
	}
}

// Activate opens the form once the policy is loaded. Non-admins keep the
// read-only summary.
func (m *Model) Activate() tea.Cmd {
	if !m.loaded || m.form != nil || !m.actor.IsAdmin() {
		return nil
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Editing reports whether the form holds keyboard focus.
func (m Model) Editing() bool {
	return m.form != nil && m.actor.IsAdmin()
}

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.ProjectID != m.projectID {
			return m, nil
		}
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		m.loaded = true
		m.fb.policy = msg.Policy
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			m.status = "Save failed: " + msg.Err.Error()
		} else {
			m.status = "Reminder settings saved."
		}
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		src, actor, id, policy := m.source, m.actor, m.projectID, m.fb.policy
		m.form = nil
		return m, func() tea.Msg {
			return SavedMsg{Err: src.UpdatePolicy(context.Background(), actor, id, policy)}
		}
	case huh.StateAborted:
		m.status = ""
		m.form = m.buildForm()
		return m, m.form.Init()
	}
	return m, cmd
}

func (m *Model) buildForm() *huh.Form {
	p := &m.fb.policy
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Notify when the project starts").
				Value(&p.OnStart),
			huh.NewConfirm().
				Title("Notify before deliverables are due").
				Value(&p.OnDeliverableDue),
			huh.NewSelect[int]().
				Title("Hours before due").
				Options(intOptions(reminder.HoursBeforeOptions, p.ReminderHoursBefore, "%d hours")...).
				Value(&p.ReminderHoursBefore),
		),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("First overdue reminder").
				Options(intOptions(reminder.FirstOptions, p.OverdueReminders.First, "%d days late")...).
				Value(&p.OverdueReminders.First),
			huh.NewSelect[int]().
				Title("Second overdue reminder").
				Options(intOptions(reminder.SecondOptions, p.OverdueReminders.Second, "%d days late")...).
				Value(&p.OverdueReminders.Second),
			huh.NewSelect[int]().
				Title("Third overdue reminder").
				Options(intOptions(reminder.ThirdOptions, p.OverdueReminders.Third, "%d days late")...).
				Value(&p.OverdueReminders.Third),
		),
	).WithWidth(m.formWidth())
}

// intOptions offers values, keeping any current value that is not listed.
func intOptions(values []int, current int, format string) []huh.Option[int] {
	if !slices.Contains(values, current) && current > 0 {
		values = append(slices.Clone(values), current)
		slices.Sort(values)
	}
	opts := make([]huh.Option[int], len(values))
	for i, v := range values {
		opts[i] = huh.NewOption(fmt.Sprintf(format, v), v)
	}
	return opts
}

// View renders the settings view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := "Reminder Settings"
	if m.project != "" {
		title += " · " + m.project
	}

	var body string
	switch {
	case m.projectID == "":
		body = theme.DimmedStyle.Render("No project selected. Press p to pick one.")
	case m.err != nil:
		body = theme.ErrorStyle.Render("Could not load settings: " + m.err.Error())
	case !m.loaded:
		body = theme.DimmedStyle.Render("Loading...")
	case m.form != nil:
		body = m.form.View()
	default:
		body = Summary(m.fb.policy)
		if !m.actor.IsAdmin() {
			body += "\n\n" + theme.HelpStyle.Render("Only admins can change reminder settings.")
		}
	}
	if m.status != "" {
		body += "\n" + theme.HelpStyle.Render(m.status)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(titleStyle.Render(title) + "\n" + body)
}

// Summary renders a policy as plain lines.
func Summary(p model.ReminderPolicy) string {
	yesNo := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	lines := []string{
		"Project start notice: " + yesNo(p.OnStart),
		fmt.Sprintf("Pre-deadline notice: %s (%d hours before)", yesNo(p.OnDeliverableDue), p.ReminderHoursBefore),
		fmt.Sprintf("Overdue reminders: %d, %d and %d days late",
			p.OverdueReminders.First, p.OverdueReminders.Second, p.OverdueReminders.Third),
	}
	return strings.Join(lines, "\n")
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 80)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
