package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("#A78BFA")
	errorColor  = lipgloss.Color("#F87171")
	mutedColor  = lipgloss.Color("#9CA3AF")
	borderColor = lipgloss.Color("#4B5563")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(borderColor)
	commandStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)
