// Package tui is the bubbletea status dashboard for a running Index,
// grounded on the teacher's cmd/arx/tui (DashboardModel's tab/tick/style
// shape) trimmed from a building-management dashboard down to a single
// index-health view.
package tui

import "github.com/charmbracelet/lipgloss"

// ColorScheme mirrors the teacher's utils.ColorScheme, trimmed to the
// colors this single-panel dashboard actually uses.
type ColorScheme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
}

// DarkTheme and LightTheme reuse the teacher's exact palette values.
var (
	DarkTheme = ColorScheme{
		Primary: lipgloss.Color("#205"),
		Success: lipgloss.Color("#42"),
		Warning: lipgloss.Color("#214"),
		Error:   lipgloss.Color("#196"),
		Muted:   lipgloss.Color("#666"),
		Border:  lipgloss.Color("#333"),
	}
	LightTheme = ColorScheme{
		Primary: lipgloss.Color("#0066CC"),
		Success: lipgloss.Color("#006600"),
		Warning: lipgloss.Color("#CC6600"),
		Error:   lipgloss.Color("#CC0000"),
		Muted:   lipgloss.Color("#999999"),
		Border:  lipgloss.Color("#CCCCCC"),
	}
)

// Styles is the set of lipgloss.Style values the dashboard renders with.
type Styles struct {
	Header  lipgloss.Style
	Panel   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles builds Styles from a ColorScheme, per the teacher's
// NewStyles(colors ColorScheme) *Styles.
func NewStyles(c ColorScheme) *Styles {
	return &Styles{
		Header:  lipgloss.NewStyle().Foreground(c.Primary).Bold(true).Padding(0, 1),
		Panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c.Border).Padding(1, 2),
		Label:   lipgloss.NewStyle().Foreground(c.Muted),
		Value:   lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(c.Success).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(c.Warning).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(c.Error).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(c.Muted),
	}
}

// ThemeStyles picks DarkTheme or LightTheme by name, per the teacher's
// GetThemeStyles(theme string).
func ThemeStyles(theme string) *Styles {
	if theme == "light" {
		return NewStyles(LightTheme)
	}
	return NewStyles(DarkTheme)
}
