package correlate

import (
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultStartPrefix = "Agent Mode Start"
	DefaultEndPrefix   = "Agent Mode End"
	DefaultIDLength    = 16

	minIDLength = 8
	maxIDLength = 32
)

// Marker is one boundary of an invocation's output.
type Marker struct {
	Prefix string
	ID     string
}

// Token is the text whose appearance in a transcript line marks the boundary.
func (m Marker) Token() string {
	return m.Prefix + " " + m.ID
}

// MarkerPair is the start and end marker of one invocation. Both share an ID.
type MarkerPair struct {
	Start Marker
	End   Marker
}

// ID returns the identifier shared by both markers.
func (p MarkerPair) ID() string {
	return p.Start.ID
}

// IDGenerator returns a fresh, unique marker ID on each call.
type IDGenerator func() string

// UUIDGenerator returns an IDGenerator producing the first length hex digits
// of a random UUID. length is clamped to [8, 32].
func UUIDGenerator(length int) IDGenerator {
	length = min(max(length, minIDLength), maxIDLength)
	return func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:length]
	}
}

// NewMarkerPair creates a marker pair with an ID from gen. Empty prefixes
// fall back to the defaults, and a nil gen uses UUIDGenerator(DefaultIDLength).
func NewMarkerPair(gen IDGenerator, startPrefix, endPrefix string) MarkerPair {
	if gen == nil {
		gen = UUIDGenerator(DefaultIDLength)
	}
	if startPrefix == "" {
		startPrefix = DefaultStartPrefix
	}
	if endPrefix == "" {
		endPrefix = DefaultEndPrefix
	}
	id := gen()
	return MarkerPair{
		Start: Marker{Prefix: startPrefix, ID: id},
		End:   Marker{Prefix: endPrefix, ID: id},
	}
}

// EchoCommand returns the shell command that prints m's token.
// With quoted set the prefix is single-quoted, so the typed command line
// does not itself contain the token.
func EchoCommand(m Marker, quoted bool) string {
	if quoted {
		return "echo '" + m.Prefix + "' " + m.ID
	}
	return "echo " + m.Token()
}
