// Package comments renders a project's comment thread with a composer.
package comments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/apperr"
	thread "github.com/nhle/epikom-hub/internal/comments"
	"github.com/nhle/epikom-hub/internal/keys"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/theme"
)

// Thread is the comment state the view drives. *comments.Thread
// satisfies it.
type Thread interface {
	Snapshot() thread.Snapshot
	Changes() <-chan struct{}
	Fetch(ctx context.Context) error
	AddComment(ctx context.Context, content string, parentID *string, mentions []string) (*model.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

// ChangedMsg is sent when the thread state changed.
type ChangedMsg struct {
	done chan struct{}
}

// ActionDoneMsg reports a finished mutation.
type ActionDoneMsg struct {
	Action string
	Err    error
}

type mode int

const (
	modeBrowse mode = iota
	modeNew
	modeReply
	modeEdit
)

// row is one rendered line of the flattened thread.
type row struct {
	comment model.Comment
	reply   bool
}

// Model is the comment thread view.
type Model struct {
	thread  Thread
	done    chan struct{}
	actor   model.Profile
	users   []model.Profile
	project string
	keys    *keys.KeyMap
	now     func() time.Time

	snap   thread.Snapshot
	rows   []row
	cursor int

	mode   mode
	target string
	input  textinput.Model
	status string

	width  int
	height int
}

// New creates an empty comments view. SetThread attaches a project.
func New(actor model.Profile, users []model.Profile, k *keys.KeyMap, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "write a comment, @name to mention"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Width = width - 6

	return Model{
		actor:  actor,
		users:  users,
		keys:   k,
		now:    time.Now,
		input:  ti,
		width:  width,
		height: height,
	}
}

// SetThread switches the view to t for the named project and returns
// the command that waits for its first change. The previous thread's
// waiter is released.
func (m *Model) SetThread(t Thread, projectName string) tea.Cmd {
	if m.done != nil {
		close(m.done)
	}
	m.thread = t
	m.project = projectName
	m.done = make(chan struct{})
	m.cursor = 0
	m.mode = modeBrowse
	m.status = ""
	m.refresh()
	return waitForChange(t.Changes(), m.done)
}

func waitForChange(ch <-chan struct{}, done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return ChangedMsg{done: done}
		case <-done:
			return nil
		}
	}
}

// SetUsers replaces the profiles @mentions resolve against.
func (m *Model) SetUsers(users []model.Profile) {
	m.users = users
}

// Composing reports whether the text input has focus, so global keys are
// not intercepted.
func (m Model) Composing() bool {
	return m.mode != modeBrowse
}

func (m *Model) refresh() {
	if m.thread == nil {
		m.snap, m.rows = thread.Snapshot{}, nil
		return
	}
	m.snap = m.thread.Snapshot()
	m.rows = flatten(m.snap.Comments)
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
}

// flatten orders a thread for display: each top-level comment followed by
// its replies.
func flatten(tree []model.Comment) []row {
	var rows []row
	for _, c := range tree {
		rows = append(rows, row{comment: c})
		for _, r := range c.Replies {
			rows = append(rows, row{comment: r, reply: true})
		}
	}
	return rows
}

// Update handles messages for the comments view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		if msg.done != m.done || m.thread == nil {
			return m, nil
		}
		m.refresh()
		return m, waitForChange(m.thread.Changes(), m.done)

	case ActionDoneMsg:
		m.status = ""
		if msg.Err != nil {
			m.status = describe(msg.Action, msg.Err)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.thread == nil {
			return m, nil
		}
		if m.mode != modeBrowse {
			return m.handleComposeKeys(msg)
		}
		return m.handleBrowseKeys(msg)
	}
	return m, nil
}

func (m Model) handleBrowseKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.New):
		cmd := m.compose(modeNew, "", "")
		return m, cmd
	case key.Matches(msg, m.keys.Reply):
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		parent := r.comment.ID
		if r.reply {
			parent = *r.comment.ParentID
		}
		cmd := m.compose(modeReply, parent, "")
		return m, cmd
	case key.Matches(msg, m.keys.Edit):
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !thread.CanModify(m.actor, r.comment) {
			m.status = "You can only edit your own comments."
			return m, nil
		}
		cmd := m.compose(modeEdit, r.comment.ID, r.comment.Content)
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		t, id := m.thread, r.comment.ID
		return m, func() tea.Msg {
			return ActionDoneMsg{Action: "Delete comment", Err: t.DeleteComment(context.Background(), id)}
		}
	case key.Matches(msg, m.keys.Refresh):
		t := m.thread
		return m, func() tea.Msg {
			return ActionDoneMsg{Action: "Refresh", Err: t.Fetch(context.Background())}
		}
	}
	return m, nil
}

func (m *Model) compose(md mode, target, initial string) tea.Cmd {
	m.mode = md
	m.target = target
	m.status = ""
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m Model) handleComposeKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		return m, nil

	case tea.KeyEnter:
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			return m, nil
		}
		cmd := m.submit(content)
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(content string) tea.Cmd {
	t, target := m.thread, m.target
	mentions := thread.ParseMentions(content, m.users)

	switch m.mode {
	case modeEdit:
		return func() tea.Msg {
			_, err := t.UpdateComment(context.Background(), target, content)
			return ActionDoneMsg{Action: "Edit comment", Err: err}
		}
	case modeReply:
		return func() tea.Msg {
			_, err := t.AddComment(context.Background(), content, &target, mentions)
			return ActionDoneMsg{Action: "Reply", Err: err}
		}
	default:
		return func() tea.Msg {
			_, err := t.AddComment(context.Background(), content, nil, mentions)
			return ActionDoneMsg{Action: "Add comment", Err: err}
		}
	}
}

func (m Model) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func describe(action string, err error) string {
	switch {
	case apperr.IsPermission(err):
		return action + ": not allowed."
	case apperr.IsValidation(err):
		return action + ": " + err.Error()
	default:
		return fmt.Sprintf("%s failed: %v", action, err)
	}
}

// View renders the thread.
func (m Model) View() string {
	var b strings.Builder
	title := "Comments"
	if m.project != "" {
		title += " · " + m.project
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title) + "\n\n")

	switch {
	case m.thread == nil:
		b.WriteString(theme.DimmedStyle.Render("No project selected. Press p to pick one."))
	case m.snap.Loading && len(m.rows) == 0:
		b.WriteString(theme.DimmedStyle.Render("Loading..."))
	case m.snap.Err != nil && len(m.rows) == 0:
		b.WriteString(theme.ErrorStyle.Render("Could not load comments: " + m.snap.Err.Error()))
	case len(m.rows) == 0:
		b.WriteString(theme.DimmedStyle.Render("No comments yet. Press n to start the discussion."))
	}

	now := m.now()
	for i, r := range m.rows {
		author := "Unknown"
		if r.comment.Author != nil {
			author = r.comment.Author.FullName
		}
		meta := ago(r.comment.CreatedAt, now)
		if r.comment.IsEdited {
			meta += " (edited)"
		}
		body := thread.HighlightMentions(r.comment.Content, func(token string) string { return theme.MentionStyle.Render(token) })
		line := lipgloss.NewStyle().Bold(true).Render(author) + " " + theme.DimmedStyle.Render(meta) + "\n" + body

		indent := 0
		if r.reply {
			indent = 4
		}
		style := theme.ListItemStyle
		if i == m.cursor {
			style = theme.SelectedItemStyle
		}
		b.WriteString(lipgloss.NewStyle().MarginLeft(indent).Render(style.Render(line)))
		b.WriteString("\n")
	}

	if m.mode != modeBrowse {
		label := map[mode]string{modeNew: "New comment", modeReply: "Reply", modeEdit: "Edit comment"}[m.mode]
		b.WriteString("\n" + theme.HelpStyle.Render(label+" (enter to send, esc to cancel)") + "\n")
		b.WriteString(m.input.View())
	}
	if m.status != "" {
		b.WriteString("\n" + theme.ErrorStyle.Render(m.status))
	}
	return lipgloss.NewStyle().Padding(0, 1).Width(m.width).Render(b.String())
}

func ago(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}
