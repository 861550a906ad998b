package cmd

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	infoColor    = lipgloss.Color("#60A5FA")
	keyColor     = lipgloss.Color("#22D3EE")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	infoStyle    = lipgloss.NewStyle().Foreground(infoColor)
	keyStyle     = lipgloss.NewStyle().Foreground(keyColor)
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
)
