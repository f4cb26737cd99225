package ui

import "github.com/charmbracelet/lipgloss"

var (
	normalFg    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#dddddd"}
	subtleFg    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	fuchsia     = lipgloss.Color("#EE6FF8")
	yellowGreen = lipgloss.Color("#ECFD65")
	cream       = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	red         = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	mintGreen   = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen   = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	boxBorder   = lipgloss.AdaptiveColor{Light: "#C2C2C2", Dark: "#3C3C3C"}
)

type styles struct {
	title       lipgloss.Style
	personality lipgloss.Style
	portrait    lipgloss.Style
	dialogue    lipgloss.Style
	you         lipgloss.Style
	subtle      lipgloss.Style
	status      lipgloss.Style
	statusError lipgloss.Style
	errorTitle  lipgloss.Style
}

func newStyles(highContrast bool) styles {
	border := lipgloss.TerminalColor(boxBorder)
	subtle := lipgloss.TerminalColor(subtleFg)
	if highContrast {
		border = lipgloss.Color("15")
		subtle = normalFg
	}

	return styles{
		title: lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true).
			Padding(0, 1),
		personality: lipgloss.NewStyle().
			Foreground(yellowGreen).
			Padding(0, 1),
		portrait: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		dialogue: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border),
		you: lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true),
		subtle: lipgloss.NewStyle().
			Foreground(subtle),
		status: lipgloss.NewStyle().
			Foreground(mintGreen).
			Background(darkGreen).
			Padding(0, 1),
		statusError: lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1),
		errorTitle: lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1),
	}
}
