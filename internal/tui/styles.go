package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, the subset this screen uses.
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorLavender lipgloss.Color = "#b4befe"
	colorText     lipgloss.Color = "#cdd6f4"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface1).Padding(0, 1)
	focusStyle  = inputStyle.BorderForeground(colorLavender)
	emptyStyle  = lipgloss.NewStyle().Foreground(colorOverlay1).Italic(true).Padding(1, 2)
	helpStyle   = lipgloss.NewStyle().Foreground(colorOverlay1)
	statusStyle = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	modalStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorRed).Foreground(colorText).Padding(0, 1)
)
