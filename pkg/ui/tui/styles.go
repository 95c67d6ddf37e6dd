package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Palette
	accent      = lipgloss.Color("#00D7FF")
	highlight   = lipgloss.Color("#AF87FF")
	good        = lipgloss.Color("#5FD75F")
	caution     = lipgloss.Color("#FFD75F")
	warn        = lipgloss.Color("#FF8700")
	danger      = lipgloss.Color("#FF5F5F")
	darkBg      = lipgloss.Color("#101322")
	panelBg     = lipgloss.Color("#1B1F33")
	dimWhite    = lipgloss.Color("#B0B0B0")
	brightWhite = lipgloss.Color("#FFFFFF")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Background(panelBg).
			Padding(1, 2)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(caution)

	successStyle = lipgloss.NewStyle().
			Foreground(good).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warn).
			Bold(true)

	jobTitleStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Bold(true)

	jobDoneStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true).
			PaddingLeft(2)

	metricsStyle = lipgloss.NewStyle().
			Foreground(accent)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)

	titleStyle = lipgloss.NewStyle().
			Background(highlight).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)
)

// StatusStyle returns the style a training status is rendered in
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return successStyle
	case "error", "failed":
		return errorStyle
	case "training":
		return warningStyle.Foreground(caution)
	default:
		return logMessageStyle
	}
}
