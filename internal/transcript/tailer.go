package transcript

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

const (
	// DefaultPollInterval is how long the reader waits for new data when no
	// filesystem event arrives first.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultStopGrace bounds how long Stop waits for the reader to exit.
	DefaultStopGrace = time.Second

	// maxConsecutiveReadFailures is the number of failed reads in a row after
	// which the failure is logged at error level. Reading continues regardless.
	maxConsecutiveReadFailures = 10

	// maxPendingBytes caps an unterminated line; beyond it the partial line is
	// published as if it had ended.
	maxPendingBytes = 1 << 20

	// sourceCheckEvery is the number of idle polls between directory scans
	// for rotation or deletion when no filesystem event prompts one.
	sourceCheckEvery = 20

	readChunkSize = 32 * 1024
)

// LineSink receives published transcript lines.
type LineSink interface {
	Append(line string)
}

// TailerConfig holds configuration for a Tailer.
type TailerConfig struct {
	Dir            string
	Pattern        string
	Encoding       string
	PollInterval   time.Duration
	FollowRotation bool
	FromStart      bool
	StopGrace      time.Duration
}

// TailerOption configures optional Tailer behavior.
type TailerOption func(*Tailer)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) TailerOption {
	return func(t *Tailer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithFs sets the filesystem used to find and read transcripts.
// Filesystem notifications are only used with the OS filesystem.
func WithFs(fsys afero.Fs) TailerOption {
	return func(t *Tailer) {
		if fsys != nil {
			t.fs = fsys
		}
	}
}

// WithRotateHandler registers a callback invoked from the reader goroutine
// after the tailer switches to a newer file.
func WithRotateHandler(fn func(oldPath, newPath string)) TailerOption {
	return func(t *Tailer) {
		t.onRotate = fn
	}
}

// WithBrokenHandler registers a callback invoked once when the source breaks.
func WithBrokenHandler(fn func(err error)) TailerOption {
	return func(t *Tailer) {
		t.onBroken = fn
	}
}

// Tailer follows one transcript file and publishes complete, cleaned lines.
type Tailer struct {
	cfg      TailerConfig
	sink     LineSink
	fs       afero.Fs
	logger   *logging.Logger
	decoder  *lineDecoder
	onRotate func(oldPath, newPath string)
	onBroken func(err error)

	mu      sync.Mutex
	path    string
	err     error
	started bool

	// Owned by the reader goroutine once started.
	file         afero.File
	offset       int64
	pending      []byte
	chunk        []byte
	readFailures int
	watcher      *fsnotify.Watcher

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	wg       conc.WaitGroup
}

// NewTailer resolves the transcript to follow. It fails with
// errors.ErrSourceNotFound when no file in cfg.Dir matches cfg.Pattern.
func NewTailer(cfg TailerConfig, sink LineSink, opts ...TailerOption) (*Tailer, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}

	t := &Tailer{
		cfg:    cfg,
		sink:   sink,
		fs:     afero.NewOsFs(),
		logger: logging.NopLogger(),
		chunk:  make([]byte, readChunkSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	dec, err := newLineDecoder(cfg.Encoding)
	if err != nil {
		return nil, errors.NewSourceError("unknown transcript encoding "+cfg.Encoding, err).WithDir(cfg.Dir)
	}
	t.decoder = dec

	path, err := Locate(t.fs, cfg.Dir, cfg.Pattern)
	if err != nil {
		return nil, err
	}
	t.path = path
	return t, nil
}

// Start opens the transcript, positions at its end (or start when FromStart
// is set) and launches the reader goroutine. Calling Start again is a no-op;
// Start after Stop fails with ErrSourceBroken.
func (t *Tailer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.stopCh:
		return errors.NewSourceError("tailer already stopped", errors.ErrSourceBroken).WithPath(t.path)
	default:
	}
	if t.started {
		return nil
	}

	f, err := t.fs.Open(t.path)
	if err != nil {
		return errors.NewSourceError("cannot open transcript", errors.Join(errors.ErrSourceNotFound, err)).WithPath(t.path)
	}
	if !t.cfg.FromStart {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			_ = f.Close()
			return errors.NewSourceError("cannot seek transcript", err).WithPath(t.path)
		}
		t.offset = off
	}
	t.file = f
	t.watcher = t.newWatcher()
	t.started = true

	t.logger.Info("following transcript", "path", t.path, "offset", t.offset, "encoding", t.decoder.name)

	t.wg.Go(func() {
		defer close(t.done)
		var pc panics.Catcher
		pc.Try(t.run)
		if r := pc.Recovered(); r != nil {
			t.logger.Error("transcript reader panicked", "panic", r.String())
			t.markBroken(errors.NewSourceError("transcript reader crashed", errors.Join(errors.ErrSourceBroken, r.AsError())).
				WithPath(t.Path()).
				WithSeverity(errors.SeverityCritical))
		}
	})
	return nil
}

func (t *Tailer) newWatcher() *fsnotify.Watcher {
	if _, ok := t.fs.(*afero.OsFs); !ok {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("filesystem notifications unavailable, polling only", "error", err)
		return nil
	}
	if err := w.Add(t.cfg.Dir); err != nil {
		_ = w.Close()
		t.logger.Warn("cannot watch transcript directory, polling only", "dir", t.cfg.Dir, "error", err)
		return nil
	}
	return w
}

// Stop signals the reader goroutine and waits up to the stop grace period for
// it to exit. Only the first call does anything; it returns an error wrapping
// errors.ErrStopTimeout if the reader did not exit in time.
func (t *Tailer) Stop() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopCh)

		t.mu.Lock()
		started := t.started
		t.mu.Unlock()
		if !started {
			return
		}

		timer := time.NewTimer(t.cfg.StopGrace)
		defer timer.Stop()
		select {
		case <-t.done:
			t.wg.Wait()
			t.logger.Debug("transcript reader stopped")
		case <-timer.C:
			err = errors.NewSourceError("reader still running after "+t.cfg.StopGrace.String(), errors.ErrStopTimeout).
				WithPath(t.Path()).
				WithSeverity(errors.SeverityWarning)
			t.logger.Warn("transcript reader did not stop in time", "grace", t.cfg.StopGrace)
		}
	})
	return err
}

// Err returns the error that broke the source, or nil while it is healthy.
func (t *Tailer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Path returns the file currently being followed.
func (t *Tailer) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

func (t *Tailer) run() {
	defer func() {
		if t.watcher != nil {
			_ = t.watcher.Close()
		}
		if t.file != nil {
			_ = t.file.Close()
		}
	}()

	timer := time.NewTimer(t.cfg.PollInterval)
	defer timer.Stop()

	idle := 0
	checkSource := false
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		if t.readAvailable() {
			idle = 0
			continue
		}

		if checkSource || idle >= sourceCheckEvery {
			checkSource = false
			idle = 0
			if !t.checkSource() {
				return
			}
		}

		var events <-chan fsnotify.Event
		var watchErrs <-chan error
		if t.watcher != nil {
			events = t.watcher.Events
			watchErrs = t.watcher.Errors
		}

		timer.Reset(t.cfg.PollInterval)
		select {
		case <-t.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				t.watcher = nil
				continue
			}
			if t.isStructural(ev) {
				checkSource = true
			}
		case err, ok := <-watchErrs:
			if !ok {
				t.watcher = nil
				continue
			}
			t.logger.Warn("filesystem watcher error", "error", err)
		case <-timer.C:
			idle++
		}
	}
}

// isStructural reports whether ev may mean the followed file was replaced,
// removed, or joined by a newer one.
func (t *Tailer) isStructural(ev fsnotify.Event) bool {
	if ev.Op.Has(fsnotify.Create) {
		return true
	}
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		return filepath.Base(ev.Name) == filepath.Base(t.path)
	}
	return false
}

// readAvailable reads one chunk and publishes any complete lines.
// It reports whether data was read.
func (t *Tailer) readAvailable() bool {
	n, err := t.file.Read(t.chunk)
	if n > 0 {
		t.offset += int64(n)
		t.readFailures = 0
		t.consume(t.chunk[:n])
		return true
	}
	if err == nil || err == io.EOF {
		t.readFailures = 0
		t.checkTruncation()
		return false
	}

	t.readFailures++
	if t.readFailures == maxConsecutiveReadFailures {
		t.logger.Error("transcript read keeps failing", "path", t.path, "failures", t.readFailures, "error", err)
	} else {
		t.logger.Warn("transcript read failed", "path", t.path, "failures", t.readFailures, "error", err)
	}
	return false
}

// checkTruncation rewinds when the file shrank below the read offset, as
// happens with copy-and-truncate log rotation.
func (t *Tailer) checkTruncation() {
	fi, err := t.file.Stat()
	if err != nil || fi.Size() >= t.offset {
		return
	}
	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		t.logger.Warn("cannot rewind truncated transcript", "path", t.path, "error", err)
		return
	}
	t.logger.Info("transcript truncated, reading from start", "path", t.path, "old_offset", t.offset, "size", fi.Size())
	t.offset = 0
	t.pending = t.pending[:0]
}

func (t *Tailer) consume(p []byte) {
	t.pending = append(t.pending, p...)
	lines, rest := t.decoder.split(t.pending)
	for _, raw := range lines {
		t.publish(raw)
	}
	t.pending = append(t.pending[:0], rest...)

	if len(t.pending) > maxPendingBytes {
		t.logger.Warn("unterminated transcript line exceeds limit, publishing as is", "bytes", len(t.pending))
		t.flushPending()
	}
}

func (t *Tailer) flushPending() {
	if len(t.pending) == 0 {
		return
	}
	t.publish(t.pending)
	t.pending = t.pending[:0]
}

func (t *Tailer) publish(raw []byte) {
	t.sink.Append(CleanLine(t.decoder.decode(raw)))
}

// checkSource handles removal and rotation. It returns false when the
// source is broken and the reader should exit.
func (t *Tailer) checkSource() bool {
	current, err := t.fs.Stat(t.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.logger.Warn("cannot stat transcript", "path", t.path, "error", err)
		return true
	}

	if err != nil {
		if t.cfg.FollowRotation {
			if next, fi, lerr := locate(t.fs, t.cfg.Dir, t.cfg.Pattern); lerr == nil && next != t.path {
				return t.switchTo(next, fi)
			}
		}
		t.markBroken(errors.NewSourceError("transcript file disappeared", errors.ErrSourceBroken).
			WithPath(t.path).
			WithSeverity(errors.SeverityCritical))
		return false
	}

	if !t.cfg.FollowRotation {
		return true
	}
	next, fi, err := locate(t.fs, t.cfg.Dir, t.cfg.Pattern)
	if err != nil || next == t.path || !fi.ModTime().After(current.ModTime()) {
		return true
	}
	return t.switchTo(next, fi)
}

// switchTo drains the current file and continues from the start of next.
func (t *Tailer) switchTo(next string, fi os.FileInfo) bool {
	for t.readAvailable() {
	}
	t.flushPending()

	f, err := t.fs.Open(next)
	if err != nil {
		t.logger.Warn("cannot open rotated transcript, staying on current file", "path", next, "error", err)
		return true
	}
	_ = t.file.Close()

	old := t.path
	t.file = f
	t.offset = 0
	t.readFailures = 0

	t.mu.Lock()
	t.path = next
	t.mu.Unlock()

	t.logger.Info("transcript rotated", "old_path", old, "new_path", next, "size", fi.Size())
	if t.onRotate != nil {
		t.onRotate(old, next)
	}
	return true
}

func (t *Tailer) markBroken(err error) {
	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return
	}
	t.err = err
	t.mu.Unlock()

	t.logger.Error("transcript source broken", "error", err)
	if t.onBroken != nil {
		t.onBroken(err)
	}
}
