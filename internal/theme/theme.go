package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadBadgeStyle renders the unread notification counter.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// DimmedStyle renders read notifications and secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// MentionStyle highlights @name tokens in comment bodies.
var MentionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorMagenta)

// ErrorStyle renders failed operations in the status line.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed)

// SeverityStyle returns a color-coded style for an alert severity.
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch severity {
	case "high":
		return base.Foreground(ColorRed)
	case "medium":
		return base.Foreground(ColorOrange)
	case "low":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// PostStatusStyle returns a color-coded style for a scheduled post status.
func PostStatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case "draft":
		return base.Foreground(ColorGray)
	case "scheduled":
		return base.Foreground(ColorBlue)
	case "published":
		return base.Foreground(ColorGreen)
	case "cancelled":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// NotificationTypeStyle returns a color-coded style for a notification type.
func NotificationTypeStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch kind {
	case "mention":
		return base.Foreground(ColorMagenta)
	case "comment":
		return base.Foreground(ColorBlue)
	case "file_upload":
		return base.Foreground(ColorGreen)
	case "deadline":
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorGray)
	}
}
