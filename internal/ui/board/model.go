// Package board renders a project's scheduled posts as a kanban board.
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/keys"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/posts"
	"github.com/nhle/epikom-hub/internal/theme"
	"github.com/nhle/epikom-hub/internal/ui/postform"
)

// Source is the post state the board drives. *posts.Board satisfies it.
type Source interface {
	Fetch(ctx context.Context) error
	ByStatus(status model.PostStatus) []model.SocialPost
	Loading() bool
	Create(ctx context.Context, in model.PostInput) (*model.SocialPost, error)
	Update(ctx context.Context, id string, patch model.PostInput) (*model.SocialPost, error)
	Drop(ctx context.Context, actor model.Profile, id string, column model.PostStatus) posts.DropResult
	Delete(ctx context.Context, id string) error
}

// LoadedMsg is sent after the posts were fetched.
type LoadedMsg struct {
	Err error
}

// DroppedMsg reports the outcome of moving a card between columns.
type DroppedMsg struct {
	Result posts.DropResult
}

// SavedMsg reports a finished create, update or delete.
type SavedMsg struct {
	Action string
	Err    error
}

// Model is the kanban board view.
type Model struct {
	source  Source
	actor   model.Profile
	project string
	keys    *keys.KeyMap
	form    postform.Model
	now     func() time.Time

	col    int
	row    int
	status string
	err    error

	width  int
	height int
}

// New creates an empty board view. SetSource attaches a project.
func New(actor model.Profile, k *keys.KeyMap, width, height int) Model {
	return Model{
		actor:  actor,
		keys:   k,
		form:   postform.New(width, height),
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// SetSource switches the board to src for the named project and loads it.
func (m *Model) SetSource(src Source, projectName string) tea.Cmd {
	m.source = src
	m.project = projectName
	m.col, m.row = 0, 0
	m.status, m.err = "", nil
	return m.load()
}

func (m Model) load() tea.Cmd {
	src := m.source
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		return LoadedMsg{Err: src.Fetch(context.Background())}
	}
}

// Editing reports whether the post form is open.
func (m Model) Editing() bool {
	return m.form.Active()
}

// Update handles messages for the board.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.err = msg.Err
		m.clamp()
		return m, nil

	case DroppedMsg:
		switch {
		case msg.Result.Err != nil:
			m.status = describe("Move", msg.Result.Err)
		case msg.Result.Post != nil:
			m.status = fmt.Sprintf("Moved %q to %s", msg.Result.Post.Title, posts.StatusLabel(msg.Result.Post.Status))
			m.focus(msg.Result.Post.ID)
		}
		m.clamp()
		return m, nil

	case SavedMsg:
		m.status = ""
		if msg.Err != nil {
			m.status = describe(msg.Action, msg.Err)
		}
		m.clamp()
		return m, nil

	case postform.PostCreatedMsg:
		src, in := m.source, msg.Input
		return m, func() tea.Msg {
			_, err := src.Create(context.Background(), in)
			return SavedMsg{Action: "Create post", Err: err}
		}

	case postform.PostUpdatedMsg:
		src, id, in := m.source, msg.ID, msg.Input
		return m, func() tea.Msg {
			_, err := src.Update(context.Background(), id, in)
			return SavedMsg{Action: "Update post", Err: err}
		}

	case postform.PostFormCancelMsg:
		return m, nil
	}

	if m.form.Active() {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok && m.source != nil {
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.column(m.col))-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.clamp()
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < len(model.PostStatuses)-1 {
			m.col++
			m.clamp()
		}
	case key.Matches(msg, m.keys.MoveLeft):
		return m, m.drop(m.col - 1)
	case key.Matches(msg, m.keys.MoveRight):
		return m, m.drop(m.col + 1)
	case key.Matches(msg, m.keys.New):
		if !m.actor.IsAdmin() {
			m.status = "Only admins can schedule posts."
			return m, nil
		}
		m.form.SetSize(m.width, m.height)
		cmd := m.form.StartCreate(m.now())
		return m, cmd
	case key.Matches(msg, m.keys.Edit):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !m.actor.IsAdmin() {
			m.status = "Only admins can edit posts."
			return m, nil
		}
		m.form.SetSize(m.width, m.height)
		cmd := m.form.StartEdit(p)
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !m.actor.IsAdmin() {
			m.status = "Only admins can delete posts."
			return m, nil
		}
		src, id := m.source, p.ID
		return m, func() tea.Msg {
			return SavedMsg{Action: "Delete post", Err: src.Delete(context.Background(), id)}
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	}
	return m, nil
}

func (m Model) drop(target int) tea.Cmd {
	p, ok := m.selected()
	if !ok || target < 0 || target >= len(model.PostStatuses) {
		return nil
	}
	src, actor, column := m.source, m.actor, model.PostStatuses[target]
	return func() tea.Msg {
		return DroppedMsg{Result: src.Drop(context.Background(), actor, p.ID, column)}
	}
}

func (m Model) column(i int) []model.SocialPost {
	if m.source == nil {
		return nil
	}
	return m.source.ByStatus(model.PostStatuses[i])
}

func (m Model) selected() (model.SocialPost, bool) {
	list := m.column(m.col)
	if m.row < 0 || m.row >= len(list) {
		return model.SocialPost{}, false
	}
	return list[m.row], true
}

// focus moves the cursor onto the card with id.
func (m *Model) focus(id string) {
	for c := range model.PostStatuses {
		for r, p := range m.column(c) {
			if p.ID == id {
				m.col, m.row = c, r
				return
			}
		}
	}
}

func (m *Model) clamp() {
	m.row = min(m.row, max(len(m.column(m.col))-1, 0))
}

func describe(action string, err error) string {
	switch {
	case apperr.IsPermission(err):
		return action + ": only admins can do that."
	case apperr.IsValidation(err):
		return action + ": " + err.Error()
	default:
		return fmt.Sprintf("%s failed: %v", action, err)
	}
}

// View renders the board.
func (m Model) View() string {
	if m.form.Active() {
		return m.form.View()
	}

	title := "Posts"
	if m.project != "" {
		title += " · " + m.project
	}
	head := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title)

	if m.source == nil {
		return lipgloss.NewStyle().Padding(0, 1).Render(
			head + "\n\n" + theme.DimmedStyle.Render("No project selected. Press p to pick one."))
	}

	colWidth := max((m.width-2)/len(model.PostStatuses)-1, 16)
	cols := make([]string, len(model.PostStatuses))
	for c, status := range model.PostStatuses {
		list := m.column(c)
		var b strings.Builder
		b.WriteString(theme.PostStatusStyle(string(status)).Render(
			fmt.Sprintf("%s (%d)", posts.StatusLabel(status), len(list))))
		b.WriteString("\n")
		for r, p := range list {
			card := fmt.Sprintf("%s %s\n%s", posts.PlatformIcon(p.Platform), p.Title, theme.DimmedStyle.Render(when(p)))
			style := theme.ListItemStyle
			if c == m.col && r == m.row {
				style = theme.SelectedItemStyle
			}
			b.WriteString(style.Width(colWidth - 2).Render(card))
			b.WriteString("\n")
		}
		border := theme.BorderStyle
		if c == m.col {
			border = border.BorderForeground(theme.ColorBlue)
		}
		cols[c] = border.Width(colWidth).Render(b.String())
	}

	body := head + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	switch {
	case m.err != nil:
		body += "\n" + theme.ErrorStyle.Render("Could not load posts: "+m.err.Error())
	case m.status != "":
		body += "\n" + theme.HelpStyle.Render(m.status)
	case m.source.Loading():
		body += "\n" + theme.DimmedStyle.Render("Loading...")
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(body)
}

func when(p model.SocialPost) string {
	if p.ScheduledTime != nil && *p.ScheduledTime != "" {
		return p.ScheduledDate + " " + *p.ScheduledTime
	}
	return p.ScheduledDate
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form.SetSize(width, height)
}
