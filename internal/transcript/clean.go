package transcript

import (
	"regexp"

	"github.com/charmbracelet/x/ansi"
)

// csiPattern matches Control Sequence Introducer sequences:
// ESC [ parameter bytes, intermediate bytes, one final byte.
var csiPattern = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

// CleanLine removes ANSI escape sequences from s. CSI sequences (colors,
// cursor movement) go first; ansi.Strip then handles OSC, DCS and the
// remaining escapes. Everything else, including a trailing newline, is kept.
func CleanLine(s string) string {
	s = csiPattern.ReplaceAllString(s, "")
	return ansi.Strip(s)
}
