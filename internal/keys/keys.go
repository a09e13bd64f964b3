package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application. View
// bindings share keys where views never overlap (d deletes in the inbox,
// the comment thread and the file list).
type KeyMap struct {
	// Navigation
	Down  key.Binding
	Up    key.Binding
	Left  key.Binding
	Right key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// View switching
	NextView key.Binding
	PrevView key.Binding
	Project  key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh and reminder sweep
	Refresh key.Binding
	Sweep   key.Binding

	// Dashboard
	SendReminder key.Binding
	SendAll      key.Binding

	// Inbox
	MarkAll  key.Binding
	Delete   key.Binding
	ClearAll key.Binding

	// Comments and board
	New   key.Binding
	Reply key.Binding
	Edit  key.Binding

	// Board
	MoveLeft  key.Binding
	MoveRight key.Binding

	// Files
	OpenURL key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Left: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "prev column"),
		),
		Right: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next column"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select / mark read"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		NextView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev view"),
		),
		Project: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "next project"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Sweep: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "run reminder sweep"),
		),
		SendReminder: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "send reminder"),
		),
		SendAll: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "send all reminders"),
		),
		MarkAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "clear all"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Reply: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reply"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		MoveLeft: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "move card left"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "move card right"),
		),
		OpenURL: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "download link"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.NextView,
		k.Quit, k.Help, k.Command,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Select, k.Back, k.Quit},
		{k.NextView, k.PrevView, k.Project, k.Command, k.Help, k.Refresh, k.Sweep},
		{k.SendReminder, k.SendAll, k.MarkAll, k.Delete, k.ClearAll},
		{k.New, k.Reply, k.Edit, k.MoveLeft, k.MoveRight, k.OpenURL},
	}
}
