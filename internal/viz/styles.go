package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2)

	safeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("48"))
	unsafeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	seedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sampleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// ProgressBar renders iteration progress at the given width.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return safeStyle.Render(strings.Repeat("█", filled)) +
		unsafeStyle.Render(strings.Repeat("░", width-filled))
}
