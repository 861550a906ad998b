package correlate

import "testing"

func TestClean(t *testing.T) {
	tokens := []string{"Agent Mode Start id1", "Agent Mode End id1"}

	tests := []struct {
		name     string
		captured []string
		want     string
	}{
		{"empty", nil, ""},
		{"single line", []string{"hello\n"}, "hello"},
		{"drops blanks", []string{"a\n", "\n", "   \n", "b\n"}, "a\nb"},
		{"crlf", []string{"a\r\n", "b\r\n"}, "a\nb"},
		{"drops marker lines", []string{"Agent Mode Start id1\n", "out\n", "x Agent Mode End id1 y\n"}, "out"},
		{"splits chunks", []string{"a\nb\n\nc"}, "a\nb\nc"},
		{"keeps inner indentation", []string{"  total 0\n", "  x\n"}, "total 0\n  x"},
		{"keeps other ids", []string{"Agent Mode End id2\n"}, "Agent Mode End id2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.captured, tokens...); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClean_IgnoresEmptyToken(t *testing.T) {
	if got := Clean([]string{"kept\n"}, ""); got != "kept" {
		t.Errorf("Clean() = %q, want %q", got, "kept")
	}
}
