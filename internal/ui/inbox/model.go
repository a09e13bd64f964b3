// Package inbox renders the signed-in user's notifications.
package inbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/keys"
	"github.com/nhle/epikom-hub/internal/notify"
	"github.com/nhle/epikom-hub/internal/theme"
)

// Source is the notification state the inbox drives. *notify.Sync
// satisfies it.
type Source interface {
	Snapshot() notify.Snapshot
	Changes() <-chan struct{}
	Refetch(ctx context.Context) error
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// ChangedMsg is sent when the notification state changed.
type ChangedMsg struct{}

// ActionDoneMsg reports a finished mutation.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// Model is the notification inbox view.
type Model struct {
	source Source
	keys   *keys.KeyMap
	now    func() time.Time
	snap   notify.Snapshot
	cursor int
	status string
	width  int
	height int
}

// New creates an inbox model.
func New(source Source, k *keys.KeyMap, width, height int) Model {
	return Model{
		source: source,
		keys:   k,
		now:    time.Now,
		snap:   source.Snapshot(),
		width:  width,
		height: height,
	}
}

// Init starts listening for state changes.
func (m Model) Init() tea.Cmd {
	return WaitForChange(m.source.Changes())
}

// WaitForChange returns a command that blocks until ch signals.
func WaitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return ChangedMsg{}
	}
}

// Unread returns the unread count of the latest snapshot.
func (m Model) Unread() int {
	return m.snap.Unread
}

// Update handles messages for the inbox.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.snap = m.source.Snapshot()
		m.cursor = min(m.cursor, max(len(m.snap.Items)-1, 0))
		return m, WaitForChange(m.source.Changes())

	case ActionDoneMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.Action, msg.Err)
		} else {
			m.status = ""
		}
		m.snap = m.source.Snapshot()
		m.cursor = min(m.cursor, max(len(m.snap.Items)-1, 0))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	src := m.source
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Select):
		if id, ok := m.selectedID(); ok {
			return m, run("Mark as read", func(ctx context.Context) error { return src.MarkAsRead(ctx, id) })
		}
	case key.Matches(msg, m.keys.Delete):
		if id, ok := m.selectedID(); ok {
			return m, run("Delete", func(ctx context.Context) error { return src.Delete(ctx, id) })
		}
	case key.Matches(msg, m.keys.MarkAll):
		return m, run("Mark all as read", src.MarkAllAsRead)
	case key.Matches(msg, m.keys.ClearAll):
		return m, run("Clear all", src.ClearAll)
	case key.Matches(msg, m.keys.Refresh):
		return m, run("Refresh", src.Refetch)
	}
	return m, nil
}

func run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn(context.Background())}
	}
}

func (m Model) selectedID() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Items) {
		return "", false
	}
	return m.snap.Items[m.cursor].ID, true
}

// View renders the inbox.
func (m Model) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Notifications")
	if m.snap.Unread > 0 {
		title += " " + theme.UnreadBadgeStyle.Render(Badge(m.snap.Unread))
	}
	b.WriteString(title + "\n\n")

	switch {
	case m.snap.Loading && len(m.snap.Items) == 0:
		b.WriteString(theme.DimmedStyle.Render("Loading..."))
	case m.snap.Err != nil && len(m.snap.Items) == 0:
		b.WriteString(theme.ErrorStyle.Render("Could not load notifications: " + m.snap.Err.Error()))
	case len(m.snap.Items) == 0:
		b.WriteString(theme.DimmedStyle.Render("No notifications yet."))
	}

	now := m.now()
	for i, n := range m.snap.Items {
		head := fmt.Sprintf("%s %s", notify.Icon(n.Type), theme.NotificationTypeStyle(string(n.Type)).Render(n.Title))
		meta := relativeTime(n.CreatedAt, now)
		if n.Actor != nil {
			meta = n.Actor.FullName + " · " + meta
		}
		line := head + "  " + theme.DimmedStyle.Render(meta)
		if n.Message != "" {
			line += "\n   " + n.Message
		}
		if n.IsRead {
			line = theme.DimmedStyle.Render(line)
		}
		if i == m.cursor {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n" + theme.ErrorStyle.Render(m.status))
	}
	return lipgloss.NewStyle().Padding(0, 1).Width(m.width).Render(b.String())
}

// Badge renders an unread count, capped at 99+.
func Badge(n int) string {
	if n > 99 {
		return "99+"
	}
	return fmt.Sprintf("%d", n)
}

func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// SetSize updates the inbox dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
