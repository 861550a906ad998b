package correlate

import (
	"strings"

	"github.com/Iron-Ham/termrelay/internal/capture"
)

// Scanner walks buffer snapshots looking for one marker pair.
type Scanner struct {
	pair  MarkerPair
	start string
	end   string

	state      State
	bound      bool
	generation uint64
	cursor     int64
	captured   []string
	scanned    int
}

// NewScanner returns a scanner for pair, waiting for the start marker.
func NewScanner(pair MarkerPair) *Scanner {
	return &Scanner{
		pair:  pair,
		start: pair.Start.Token(),
		end:   pair.End.Token(),
		state: StateInjected,
	}
}

// Scan processes lines of snap the scanner has not seen yet and reports
// whether the end marker has been reached. Scanning the same snapshot again
// changes nothing. A snapshot from a different buffer generation restarts
// the cursor at that generation's first line.
func (s *Scanner) Scan(snap capture.Snapshot) bool {
	if s.state.IsTerminal() {
		return s.state == StateCompleted
	}
	if !s.bound || snap.Generation != s.generation {
		s.bound = true
		s.generation = snap.Generation
		s.cursor = 0
	}

	for i, line := range snap.Lines {
		idx := snap.Offset + int64(i)
		if idx < s.cursor {
			continue
		}
		s.cursor = idx + 1
		s.scanned++
		if s.process(line) {
			return true
		}
	}
	if end := snap.End(); end > s.cursor {
		s.cursor = end
	}
	return false
}

func (s *Scanner) process(line string) bool {
	switch s.state {
	case StateInjected:
		if strings.Contains(line, s.start) {
			s.state = StateStarted
			s.captured = s.captured[:0]
		}
	case StateStarted:
		switch {
		case strings.Contains(line, s.end):
			s.state = StateCompleted
			return true
		case strings.Contains(line, s.start):
			// first start wins
		default:
			s.captured = append(s.captured, line)
		}
	}
	return false
}

// State returns the scanner's current state.
func (s *Scanner) State() State {
	return s.state
}

// Cursor returns the buffer generation and the absolute index of the next
// unseen line.
func (s *Scanner) Cursor() (generation uint64, next int64) {
	return s.generation, s.cursor
}

// LinesScanned returns how many lines have been examined.
func (s *Scanner) LinesScanned() int {
	return s.scanned
}

// Output returns the cleaned capture. It is empty until the end marker is seen.
// The terminal's echo of a quoted marker command is dropped along with the
// marker lines themselves.
func (s *Scanner) Output() string {
	if s.state != StateCompleted {
		return ""
	}
	return Clean(s.captured, s.start, s.end, EchoCommand(s.pair.End, true))
}

// timeOut marks the scan as abandoned.
func (s *Scanner) timeOut() {
	if !s.state.IsTerminal() {
		s.state = StateTimedOut
	}
}
