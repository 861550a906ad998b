// Package capture holds the in-memory record of transcript lines observed
// since the last command was injected.
//
// # Main Types
//
//   - [LineBuffer]: append-only list of cleaned lines with snapshot and reset
//   - [Snapshot]: an immutable view of the buffer at one instant
//
// # Design
//
// The transcript reader appends lines; the correlator resets the buffer before
// each command and then repeatedly takes snapshots and scans them for marker
// lines. Every line has an absolute index that stays stable until the next
// [LineBuffer.Reset], even when the buffer is bounded and old lines are
// discarded. Scanners remember the index they reached and ask for only the
// lines after it with [LineBuffer.Since].
//
// Each Reset bumps the buffer's generation. A scanner holding a cursor from a
// previous generation gets the whole buffer back instead of a stale slice.
//
// # Thread Safety
//
// All methods are safe for concurrent use. One mutex guards the buffer and
// every method is a single critical section, so a snapshot never observes a
// half-applied append or reset.
//
// # Basic Usage
//
//	buf := capture.NewLineBuffer(capture.DefaultMaxLines)
//	go reader(buf) // calls buf.Append(line)
//
//	buf.Reset()
//	for {
//	    snap := buf.Since(gen, cursor)
//	    // scan snap.Lines ...
//	    select {
//	    case <-buf.Notify():
//	    case <-time.After(10 * time.Millisecond):
//	    }
//	}
package capture
