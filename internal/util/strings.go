// Package util holds small text helpers shared by the event log handler and
// the console.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks where text was cut.
const Ellipsis = "..."

// Abbreviate shortens s to at most maxRunes runes, ending in Ellipsis when
// anything was dropped. It does not understand escape sequences; use
// FitWidth for styled text.
func Abbreviate(s string, maxRunes int) string {
	if maxRunes <= len(Ellipsis) {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-len(Ellipsis)]) + Ellipsis
}

// FitWidth truncates s to maxWidth terminal cells. ANSI styling is kept
// intact and wide characters count for their display width.
func FitWidth(s string, maxWidth int) string {
	if maxWidth <= len(Ellipsis) {
		return Ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, Ellipsis)
}
