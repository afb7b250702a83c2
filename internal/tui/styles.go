package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy   = lipgloss.Color("#1B2A41")
	ColorBlue   = lipgloss.Color("#4EA8DE")
	ColorGreen  = lipgloss.Color("#56D364")
	ColorYellow = lipgloss.Color("#E3B341")
	ColorRed    = lipgloss.Color("#F85149")
	ColorGray   = lipgloss.Color("#8B949E")
	ColorWhite  = lipgloss.Color("#E6EDF3")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorNavy).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite).
			Padding(0, 1)

	barStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Background(ColorBlue)

	errorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
)

// stateStyle colors a playback state label.
func stateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Background(ColorNavy)
	switch state {
	case "streaming":
		return base.Foreground(ColorGreen)
	case "done":
		return base.Foreground(ColorBlue)
	case "error":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorYellow)
	}
}
