package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/epikom-hub/internal/theme"
)

// Layout manages the terminal layout dimensions: a header, a row of view
// tabs, the content area and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	TabsHeight      int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// The header, tab row and status bar are one line each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		TabsHeight:      1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.TabsHeight - l.StatusBarHeight
}

// RenderTabs renders the view names with the active one highlighted. A
// non-empty badge is appended to the tab named badgeTab.
func (l Layout) RenderTabs(names []string, active int, badgeTab, badge string) string {
	tabs := make([]string, 0, len(names))
	for i, name := range names {
		label := name
		if name == badgeTab && badge != "" {
			label += " " + theme.UnreadBadgeStyle.Render(badge)
		}
		style := lipgloss.NewStyle().Padding(0, 1).Foreground(theme.ColorGray)
		if i == active {
			style = style.Bold(true).Foreground(theme.ColorBlue).Underline(true)
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.NewStyle().MaxWidth(l.Width).Render(
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
	)
}

// RenderHeader renders the top header bar with a title and the signed-in
// user and sweep status on the right.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, tabs, content area (padded to its height), and status bar.
func (l Layout) RenderWithFrame(
	header string,
	tabs string,
	content string,
	statusBar string,
) string {
	body := lipgloss.NewStyle().
		Height(max(l.ContentHeight(), 0)).
		MaxHeight(max(l.ContentHeight(), 0)).
		Render(content)
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		tabs,
		body,
		statusBar,
	)
}
