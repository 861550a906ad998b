// Package transcript follows the log file a terminal emulator writes for its
// session and publishes each new line, cleaned of escape sequences, to a sink.
//
// # Main Types
//
//   - [Tailer]: background reader that tails the newest matching file
//   - [LineSink]: where published lines go (usually a capture.LineBuffer)
//   - [Locate]: picks the newest file matching a pattern in a directory
//   - [CleanLine]: strips ANSI escape sequences from one line
//
// # Behavior
//
// A Tailer starts at the current end of the file, so only lines written after
// Start are observed. Only complete lines are published; a partial line is
// held until its newline arrives. Lines keep their trailing newline.
//
// The tailer never busy-waits: with no new data it sleeps until fsnotify
// reports a change in the directory or the poll interval elapses.
//
// When the emulator starts a new log file the tailer finishes the old one and
// continues from the start of the new one. If the followed file disappears
// with no replacement the source is broken and [Tailer.Err] reports
// errors.ErrSourceBroken.
package transcript
