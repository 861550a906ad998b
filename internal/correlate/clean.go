package correlate

import "strings"

// Clean joins captured transcript lines into command output. Lines are split
// on newlines; blank lines and lines containing any of tokens are dropped,
// trailing carriage returns removed, and the result trimmed.
func Clean(captured []string, tokens ...string) string {
	var kept []string
	for _, chunk := range captured {
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" || containsAny(line, tokens) {
				continue
			}
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func containsAny(line string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(line, tok) {
			return true
		}
	}
	return false
}
