package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/alerts"
	"github.com/nhle/epikom-hub/internal/comments"
	"github.com/nhle/epikom-hub/internal/files"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/notify"
	"github.com/nhle/epikom-hub/internal/posts"
	"github.com/nhle/epikom-hub/internal/realtime"
	"github.com/nhle/epikom-hub/internal/reminder"
	"github.com/nhle/epikom-hub/internal/store"
	appsync "github.com/nhle/epikom-hub/internal/sync"
	"github.com/nhle/epikom-hub/internal/ui"
	boardview "github.com/nhle/epikom-hub/internal/ui/board"
	"github.com/nhle/epikom-hub/internal/ui/command"
	commentsview "github.com/nhle/epikom-hub/internal/ui/comments"
	"github.com/nhle/epikom-hub/internal/ui/dashboard"
	filesview "github.com/nhle/epikom-hub/internal/ui/files"
	helpview "github.com/nhle/epikom-hub/internal/ui/help"
	"github.com/nhle/epikom-hub/internal/ui/inbox"
	"github.com/nhle/epikom-hub/internal/ui/policyform"
	"github.com/nhle/epikom-hub/internal/ui/postform"
)

// projectsLoadedMsg carries the projects and profiles visible to the
// signed-in user.
type projectsLoadedMsg struct {
	projects []model.Project
	users    []model.Profile
	err      error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewInbox
	ViewComments
	ViewBoard
	ViewFiles
	ViewPolicy
	ViewHelp
	ViewCommand
)

// tabViews are the views reachable with tab, in order.
var tabViews = []ViewState{ViewDashboard, ViewInbox, ViewComments, ViewBoard, ViewFiles, ViewPolicy}

var viewNames = map[ViewState]string{
	ViewDashboard: "Dashboard",
	ViewInbox:     "Inbox",
	ViewComments:  "Comments",
	ViewBoard:     "Posts",
	ViewFiles:     "Files",
	ViewPolicy:    "Reminders",
	ViewHelp:      "Help",
	ViewCommand:   "Command",
}

// Deps are the services the UI drives. They are owned by the caller.
type Deps struct {
	Store     *store.SQLiteStore
	Feeds     *realtime.Registry
	Actor     model.Profile
	Alerts    *alerts.Aggregator
	Inbox     *notify.Sync
	Reminders *reminder.Service
	Files     *files.Service
	Sweeper   *appsync.Sweeper
	Log       *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the currently selected project.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	deps         Deps
	keys         *KeyMap

	dashboard   dashboard.Model
	inbox       inbox.Model
	comments    commentsview.Model
	board       boardview.Model
	files       filesview.Model
	policy      policyform.Model
	helpView    helpview.Model
	commandView command.Model

	projects []model.Project
	project  int
	thread   *comments.Thread

	ready      bool
	sweepState string
	notice     string
}

// New creates a new root application model over deps.
func New(deps Deps) Model {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	keys := DefaultKeyMap()
	actor := deps.Actor

	return Model{
		currentView: ViewDashboard,
		deps:        deps,
		keys:        keys,
		dashboard:   dashboard.New(deps.Alerts, keys, 80, 24),
		inbox:       inbox.New(deps.Inbox, keys, 80, 24),
		comments:    commentsview.New(actor, nil, keys, 80, 24),
		board:       boardview.New(actor, keys, 80, 24),
		files:       filesview.New(deps.Files, actor, keys, 80, 24),
		policy:      policyform.New(deps.Reminders, actor, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		commandView: command.New(80, 24),
		project:     -1,
		sweepState:  "idle",
	}
}

// Init loads alerts and projects, starts listening for notifications and
// starts the reminder sweep.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.inbox.Init(),
		m.loadProjects(),
		m.deps.Sweeper.Start(),
	)
}

func (m Model) loadProjects() tea.Cmd {
	s := m.deps.Store
	return func() tea.Msg {
		ctx := context.Background()
		projects, err := s.ListProjects(ctx)
		if err != nil {
			return projectsLoadedMsg{err: err}
		}
		users, err := s.ListProfiles(ctx)
		return projectsLoadedMsg{projects: projects, users: users, err: err}
	}
}

// Update handles messages and dispatches to the owning view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.dashboard.SetSize(w, h)
		m.inbox.SetSize(w, h)
		m.comments.SetSize(w, h)
		m.board.SetSize(w, h)
		m.files.SetSize(w, h)
		m.policy.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case projectsLoadedMsg:
		if msg.err != nil {
			m.notice = "Could not load projects: " + msg.err.Error()
			m.deps.Log.Warn("loading projects", zap.Error(msg.err))
			return m, nil
		}
		m.projects = msg.projects
		m.comments.SetUsers(msg.users)
		if len(m.projects) > 0 && m.project < 0 {
			cmd = m.selectProject(0)
		}
		return m, cmd
		return m, nil

	case appsync.SweepResultMsg:
		if msg.Error != nil {
			m.sweepState = "sweep failed"
		} else {
			m.sweepState = "swept " + msg.At.Local().Format("15:04")
			if n := msg.Reminders.Sent + msg.PostsAnnounced; n > 0 {
				m.notice = fmt.Sprintf("%s, %d posts announced", dashboard.SummaryLine(msg.Reminders), msg.PostsAnnounced)
			}
		}
		return m, tea.Batch(m.dashboard.Load(), m.deps.Sweeper.WaitForNextResult())

	case dashboard.AlertsLoadedMsg, dashboard.RemindersSentMsg:
		m.dashboard, cmd = m.dashboard.Update(msg)
		return m, cmd

	case inbox.ChangedMsg, inbox.ActionDoneMsg:
		m.inbox, cmd = m.inbox.Update(msg)
		return m, cmd

	case commentsview.ChangedMsg, commentsview.ActionDoneMsg:
		m.comments, cmd = m.comments.Update(msg)
		return m, cmd

	case boardview.LoadedMsg, boardview.DroppedMsg, boardview.SavedMsg,
		postform.PostCreatedMsg, postform.PostUpdatedMsg, postform.PostFormCancelMsg:
		m.board, cmd = m.board.Update(msg)
		return m, cmd

	case filesview.LoadedMsg, filesview.ActionDoneMsg:
		m.files, cmd = m.files.Update(msg)
		return m, cmd

	case policyform.LoadedMsg, policyform.SavedMsg:
		m.policy, cmd = m.policy.Update(msg)
		if m.currentView == ViewPolicy {
			cmd = tea.Batch(cmd, m.policy.Activate())
		}
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd = m.executeCommand(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			cmd = m.quit()
			return m, cmd
		}
		m.notice = ""
		if m.capturingInput() {
			if m.currentView == ViewPolicy && key.Matches(msg, m.keys.Back) {
				m.switchTo(ViewDashboard)
				return m, nil
			}
			if m.currentView == ViewCommand && key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			return m.updateActiveView(msg)
		}
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// capturingInput reports whether the active view owns every key.
func (m Model) capturingInput() bool {
	switch m.currentView {
	case ViewCommand:
		return true
	case ViewComments:
		return m.comments.Composing()
	case ViewBoard:
		return m.board.Editing()
	case ViewPolicy:
		return m.policy.Editing()
	}
	return false
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		cmd := m.quit()
		return m, cmd, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.helpView.ForView(viewNames[m.currentView], m.viewBindings())
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}

	case key.Matches(msg, m.keys.NextView):
		cmd := m.switchTo(m.neighbourView(1))
		return m, cmd, true

	case key.Matches(msg, m.keys.PrevView):
		cmd := m.switchTo(m.neighbourView(-1))
		return m, cmd, true

	case key.Matches(msg, m.keys.Project):
		if len(m.projects) == 0 {
			return m, nil, true
		}
		cmd := m.selectProject((m.project + 1) % len(m.projects))
		return m, cmd, true

	case key.Matches(msg, m.keys.Sweep):
		m.sweepState = "sweeping"
		return m, m.deps.Sweeper.Trigger(), true
	}
	return m, nil, false
}

func (m Model) neighbourView(step int) ViewState {
	current := m.currentView
	if current == ViewHelp || current == ViewCommand {
		current = m.previousView
	}
	for i, v := range tabViews {
		if v == current {
			return tabViews[(i+step+len(tabViews))%len(tabViews)]
		}
	}
	return ViewDashboard
}

func (m *Model) switchTo(v ViewState) tea.Cmd {
	m.currentView = v
	if v == ViewPolicy {
		return m.policy.Activate()
	}
	return nil
}

// selectProject points the project-scoped views at project i, leaving
// the previous project's comment feed.
func (m *Model) selectProject(i int) tea.Cmd {
	if m.thread != nil {
		m.thread.Close()
	}
	p := m.projects[i]
	m.project = i

	t := comments.NewThread(m.deps.Store, m.deps.Feeds, p.ID, m.deps.Actor, m.deps.Log)
	m.thread = t
	board := posts.NewBoard(m.deps.Store, p.ID, m.deps.Log)

	open := func() tea.Msg {
		ctx := context.Background()
		err := t.Fetch(ctx)
		if subErr := t.Subscribe(ctx); err == nil {
			err = subErr
		}
		return commentsview.ActionDoneMsg{Action: "Load comments", Err: err}
	}

	cmds := []tea.Cmd{
		m.comments.SetThread(t, p.Name),
		open,
		m.board.SetSource(board, p.Name),
		m.files.SetProject(p.ID, p.Name),
		m.policy.SetProject(p.ID, p.Name),
	}
	return tea.Batch(cmds...)
}

func (m *Model) quit() tea.Cmd {
	m.deps.Sweeper.Stop()
	if m.thread != nil {
		m.thread.Close()
	}
	return tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewComments:
		m.comments, cmd = m.comments.Update(msg)
	case ViewBoard:
		m.board, cmd = m.board.Update(msg)
	case ViewFiles:
		m.files, cmd = m.files.Update(msg)
	case ViewPolicy:
		m.policy, cmd = m.policy.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Epikom Hub", m.headerStatus())

	names := make([]string, len(tabViews))
	active := -1
	for i, v := range tabViews {
		names[i] = viewNames[v]
		if v == m.currentView {
			active = i
		}
	}
	badge := ""
	if n := m.inbox.Unread(); n > 0 {
		badge = inbox.Badge(n)
	}
	tabs := m.layout.RenderTabs(names, active, viewNames[ViewInbox], badge)

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, tabs, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDashboard:
		return m.dashboard.View()
	case ViewInbox:
		return m.inbox.View()
	case ViewComments:
		return m.comments.View()
	case ViewBoard:
		return m.board.View()
	case ViewFiles:
		return m.files.View()
	case ViewPolicy:
		return m.policy.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// headerStatus names the signed-in user, the project and the sweep state.
func (m Model) headerStatus() string {
	parts := []string{m.deps.Actor.FullName + " (" + string(m.deps.Actor.Role) + ")"}
	if m.project >= 0 && m.project < len(m.projects) {
		parts = append(parts, m.projects[m.project].Name)
	}
	switch status := m.deps.Sweeper.Status(); status.State {
	case appsync.SweepRunning:
		parts = append(parts, "sweeping")
	case appsync.SweepError:
		parts = append(parts, "⚠ sweep failed")
	default:
		parts = append(parts, m.sweepState)
	}
	return strings.Join(parts, " · ")
}

// viewBindings returns the bindings specific to the current view.
func (m Model) viewBindings() []key.Binding {
	k := m.keys
	switch m.currentView {
	case ViewDashboard:
		return []key.Binding{k.Up, k.Down, k.SendReminder, k.SendAll, k.Refresh}
	case ViewInbox:
		return []key.Binding{k.Select, k.MarkAll, k.Delete, k.ClearAll, k.Refresh}
	case ViewComments:
		return []key.Binding{k.New, k.Reply, k.Edit, k.Delete, k.Refresh}
	case ViewBoard:
		return []key.Binding{k.Left, k.Right, k.MoveLeft, k.MoveRight, k.New, k.Edit, k.Delete}
	case ViewFiles:
		return []key.Binding{k.OpenURL, k.Delete, k.Refresh}
	default:
		return nil
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.notice != "" {
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDashboard:
		return "s send reminder | S send all | R sweep | tab views | p project | ? help | q quit"
	case ViewInbox:
		return "enter mark read | A all read | d delete | X clear all | tab views"
	case ViewComments:
		if m.comments.Composing() {
			return "enter send | esc cancel"
		}
		return "n new | r reply | e edit | d delete | p project | tab views"
	case ViewBoard:
		if m.board.Editing() {
			return "enter next | esc cancel"
		}
		return "←/→ column | h/l move card | n new | e edit | d delete | p project"
	case ViewFiles:
		return "o link | d delete | :upload <path> | p project"
	case ViewPolicy:
		if m.policy.Editing() {
			return "enter next | esc leave"
		}
		return "p project | tab views"
	default:
		return ""
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Name {
	case command.Upload:
		if len(c.Args) == 0 {
			m.notice = "usage: upload <path> [description]"
			return nil
		}
		m.currentView = ViewFiles
		return m.files.UploadPath(c.Args[0], c.Arg(1))
	case command.Sweep:
		m.sweepState = "sweeping"
		return m.deps.Sweeper.Trigger()
	case command.Project:
		name := strings.ToLower(c.Arg(0))
		for i, p := range m.projects {
			if name != "" && strings.Contains(strings.ToLower(p.Name), name) {
				return m.selectProject(i)
			}
		}
		m.notice = fmt.Sprintf("no project matches %q", c.Arg(0))
		return nil
	case command.Refresh:
		inboxSrc := m.deps.Inbox
		return tea.Batch(m.dashboard.Load(), m.loadProjects(), func() tea.Msg {
			return inbox.ActionDoneMsg{Action: "Refresh", Err: inboxSrc.Refetch(context.Background())}
		})
	case command.HelpName:
		m.helpView.ForView(viewNames[m.currentView], m.viewBindings())
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	case command.Quit, "q":
		return m.quit()
	default:
		m.notice = fmt.Sprintf("unknown command %q", c.Name)
		return nil
	}
}
