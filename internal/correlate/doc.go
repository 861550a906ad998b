// Package correlate runs one command through an opaque terminal and recovers
// its output from the transcript.
//
// For every invocation a fresh marker pair is generated. The correlator
// clears the line buffer, then types three lines into the target:
//
//	echo 'Agent Mode Start' 3f9a0c7e5b1d2a48
//	<command>
//	echo 'Agent Mode End' 3f9a0c7e5b1d2a48
//
// and polls the buffer until the shell's output of both echoes has been seen
// in order. The lines between them, minus blank lines and marker lines, are
// the command's output.
//
// Quoting the prefix keeps the terminal's echo of the typed line from
// containing the contiguous token "Agent Mode Start 3f9a...", so only the
// shell's output of the echo can start or end a capture.
//
// # Scan State
//
// A [Scanner] remembers the absolute index of the next line it has not seen,
// so rescanning a snapshot never captures a line twice. The first start
// marker wins; an end marker seen before any start marker is ignored; once
// the end marker is seen nothing more is processed.
package correlate
