package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/blobprobe/blobprobe/internal/config"
)

var (
	// Colors
	ColorNeonPurple = lipgloss.Color("#bd93f9") // Dracula Purple
	ColorNeonPink   = lipgloss.Color("#ff79c6") // Dracula Pink
	ColorNeonCyan   = lipgloss.Color("#8be9fd") // Dracula Cyan
	ColorSuccess    = lipgloss.Color("#50fa7b") // Dracula Green
	ColorError      = lipgloss.Color("#ff5555") // Dracula Red
	ColorWarning    = lipgloss.Color("#ffb86c") // Dracula Orange
	ColorGray       = lipgloss.Color("#6272a4") // Dracula Comment
	ColorBorder     = lipgloss.Color("#44475a") // Dracula Selection

	ColorText      = lipgloss.AdaptiveColor{Light: "#282a36", Dark: "#f8f8f2"}
	ColorLightGray = lipgloss.AdaptiveColor{Light: "#44475a", Dark: "#bfbfbf"}

	// Styles
	AppStyle = lipgloss.NewStyle().
			Padding(DefaultPaddingX, 2).
			Foreground(ColorText)

	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPurple).
			Bold(true)

	// List Styles
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(ColorNeonPink).
				Bold(true)

	ItemStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	ColumnHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorGray).
				Bold(true)

	// Status Bar Styles
	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Padding(DefaultPaddingY, DefaultPaddingX)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true).
				Padding(DefaultPaddingY, DefaultPaddingX)

	// Stats
	StatsLabelStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Width(10)

	StatsValueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	// Tabs
	TabStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPink).
			Bold(true).
			Underline(true).
			Padding(0, 1)
)

// ApplyTheme sets the background lipgloss assumes when resolving adaptive colors.
func ApplyTheme(theme int) {
	switch theme {
	case config.ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	case config.ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	default:
		lipgloss.SetHasDarkBackground(termenv.HasDarkBackground())
	}
}
