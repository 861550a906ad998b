package capture

import "sync"

// DefaultMaxLines bounds a LineBuffer when the caller does not choose a limit.
const DefaultMaxLines = 100000

// Snapshot is a copy of part of a LineBuffer taken under its lock.
//
// Lines[i] has absolute index Offset+i within Generation.
type Snapshot struct {
	Lines      []string
	Offset     int64
	Generation uint64
}

// End returns the absolute index one past the last line in the snapshot.
func (s Snapshot) End() int64 {
	return s.Offset + int64(len(s.Lines))
}

// LineBuffer is a thread-safe, optionally bounded list of transcript lines.
//
// When more than maxLines lines are held, the oldest are discarded and the
// offset advances so that absolute indexes of surviving lines do not change.
// A maxLines of 0 means unbounded.
type LineBuffer struct {
	mu         sync.Mutex
	lines      []string
	offset     int64
	generation uint64
	maxLines   int
	notify     chan struct{}
}

// NewLineBuffer creates an empty buffer holding at most maxLines lines.
func NewLineBuffer(maxLines int) *LineBuffer {
	if maxLines < 0 {
		maxLines = 0
	}
	return &LineBuffer{
		maxLines: maxLines,
		notify:   make(chan struct{}, 1),
	}
}

// Append adds a line to the end of the buffer and wakes one waiter on Notify.
func (b *LineBuffer) Append(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	if b.maxLines > 0 && len(b.lines) > b.maxLines {
		drop := len(b.lines) - b.maxLines
		clear(b.lines[:drop])
		b.lines = b.lines[drop:]
		b.offset += int64(drop)
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of every line currently held.
func (b *LineBuffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked(b.offset)
}

// Since returns the lines at absolute index >= from, provided generation is
// still current. If the buffer has been reset since, the whole buffer is
// returned and the caller should rebind to the snapshot's Generation.
func (b *LineBuffer) Since(generation uint64, from int64) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		from = b.offset
	}
	return b.snapshotLocked(from)
}

func (b *LineBuffer) snapshotLocked(from int64) Snapshot {
	if from < b.offset {
		from = b.offset
	}
	start := int(from - b.offset)
	if start > len(b.lines) {
		start = len(b.lines)
	}

	lines := make([]string, len(b.lines)-start)
	copy(lines, b.lines[start:])
	return Snapshot{
		Lines:      lines,
		Offset:     b.offset + int64(start),
		Generation: b.generation,
	}
}

// Reset discards all lines, restarts absolute indexes at zero and begins a
// new generation.
func (b *LineBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = nil
	b.offset = 0
	b.generation++
}

// Len returns the number of lines currently held.
func (b *LineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.lines)
}

// Generation returns the current generation counter.
func (b *LineBuffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.generation
}

// Notify returns a channel that receives a value after lines are appended.
// Wakeups coalesce: several appends may produce a single receive.
func (b *LineBuffer) Notify() <-chan struct{} {
	return b.notify
}
