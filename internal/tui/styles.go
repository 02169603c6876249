package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorBlue    = lipgloss.Color("#89b4fa")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorRed     = lipgloss.Color("#f38ba8")
	colorPeach   = lipgloss.Color("#fab387")
	colorText    = lipgloss.Color("#cdd6f4")
	colorOverlay = lipgloss.Color("#7f849c")
	colorSurface = lipgloss.Color("#313244")

	titleStyle       = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	labelStyle       = lipgloss.NewStyle().Foreground(colorOverlay)
	mutedStyle       = lipgloss.NewStyle().Foreground(colorOverlay)
	textStyle        = lipgloss.NewStyle().Foreground(colorText)
	errorStyle       = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	busyStyle        = lipgloss.NewStyle().Foreground(colorPeach)
	okStyle          = lipgloss.NewStyle().Foreground(colorGreen)
	cursorStyle      = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	activeTabStyle   = lipgloss.NewStyle().Foreground(colorText).Background(colorSurface).Bold(true).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(colorOverlay).Padding(0, 1)
	panelStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface).Padding(0, 1)
)

func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
