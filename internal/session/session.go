package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/termrelay/internal/capture"
	"github.com/Iron-Ham/termrelay/internal/config"
	"github.com/Iron-Ham/termrelay/internal/correlate"
	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/event"
	"github.com/Iron-Ham/termrelay/internal/inject"
	"github.com/Iron-Ham/termrelay/internal/logging"
	"github.com/Iron-Ham/termrelay/internal/transcript"
)

// Config collects what a session needs from the application config.
type Config struct {
	Transcript       transcript.TailerConfig
	MaxBufferedLines int
	Correlator       correlate.Config
	// LockDir holds per-target lock files. Empty means in-process locking only.
	LockDir string
}

// FromConfig builds a session Config from the application config.
// transcriptDir overrides cfg.Transcript.Dir when non-empty.
func FromConfig(cfg *config.Config, transcriptDir string) Config {
	if transcriptDir == "" {
		transcriptDir = config.ExpandHome(cfg.Transcript.Dir)
	}
	return Config{
		Transcript: transcript.TailerConfig{
			Dir:            transcriptDir,
			Pattern:        cfg.Transcript.Pattern,
			Encoding:       cfg.Transcript.Encoding,
			PollInterval:   cfg.Transcript.PollInterval(),
			FollowRotation: cfg.Transcript.FollowRotation,
			FromStart:      cfg.Transcript.FromStart,
			StopGrace:      cfg.Transcript.StopGrace(),
		},
		MaxBufferedLines: cfg.Transcript.MaxBufferedLines,
		Correlator: correlate.Config{
			DefaultTimeout: cfg.Correlator.DefaultTimeout(),
			PollInterval:   cfg.Correlator.PollInterval(),
			StartPrefix:    cfg.Correlator.StartPrefix,
			EndPrefix:      cfg.Correlator.EndPrefix,
			QuoteEcho:      cfg.Correlator.QuoteEcho,
			IDGenerator:    correlate.UUIDGenerator(cfg.Correlator.MarkerIDLength),
		},
		LockDir: cfg.Target.ResolveLockDir(),
	}
}

// Session ties one transcript, one injection target, and one correlator
// together. Execute calls must be serialized by the caller; an overlapping
// call is refused with ErrSessionBusy.
type Session struct {
	id       string
	injector inject.Injector
	buffer   *capture.LineBuffer
	tailer   *transcript.Tailer
	corr     *correlate.Correlator
	lock     *Lock
	bus      *event.Bus
	logger   *logging.Logger

	execMu      sync.Mutex
	closed      atomic.Bool
	invocations atomic.Int64
	closeOnce   sync.Once
	closeErr    error
}

// Option configures a Session.
type Option func(*options)

type options struct {
	id     string
	logger *logging.Logger
	bus    *event.Bus
	fs     afero.Fs
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBus sets the bus that receives session events.
func WithBus(b *event.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

// WithFs sets the filesystem the transcript is read from.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

// New locks the injector's target, locates the transcript and starts
// following it. The returned session owns injector: Close closes it when it
// implements io.Closer.
func New(cfg Config, injector inject.Injector, opts ...Option) (*Session, error) {
	o := options{
		id:     strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if injector == nil {
		return nil, errors.NewSessionError("no injection target", errors.ErrInvalidInput)
	}

	logger := o.logger.WithSession(o.id)
	s := &Session{
		id:       o.id,
		injector: injector,
		buffer:   capture.NewLineBuffer(cfg.MaxBufferedLines),
		bus:      o.bus,
		logger:   logger,
	}

	lock, err := AcquireLock(cfg.LockDir, injector.Target(), s.id, logger)
	if err != nil {
		return nil, err
	}
	s.lock = lock

	tailerOpts := []transcript.TailerOption{
		transcript.WithLogger(logger),
		transcript.WithRotateHandler(func(oldPath, newPath string) {
			s.bus.Publish(event.NewTranscriptRotatedEvent(s.id, oldPath, newPath))
		}),
		transcript.WithBrokenHandler(func(err error) {
			s.bus.Publish(event.NewTranscriptBrokenEvent(s.id, s.tailer.Path(), err))
		}),
	}
	if o.fs != nil {
		tailerOpts = append(tailerOpts, transcript.WithFs(o.fs))
	}

	tailer, err := transcript.NewTailer(cfg.Transcript, s.buffer, tailerOpts...)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	s.tailer = tailer
	s.corr = correlate.New(s.buffer, injector, cfg.Correlator, correlate.WithLogger(logger))

	if err := tailer.Start(); err != nil {
		_ = lock.Release()
		return nil, err
	}

	logger.Info("session opened", "target", injector.Target(), "transcript", tailer.Path())
	return s, nil
}

// ID returns the session identifier used in logs and events.
func (s *Session) ID() string {
	return s.id
}

// Target returns the injection target's description.
func (s *Session) Target() string {
	return s.injector.Target()
}

// TranscriptPath returns the file currently being followed.
func (s *Session) TranscriptPath() string {
	return s.tailer.Path()
}

// Invocations returns how many commands have been run.
func (s *Session) Invocations() int {
	return int(s.invocations.Load())
}

// Execute runs command on the target and returns its output.
func (s *Session) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	res, err := s.Run(ctx, command, timeout)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Run is Execute with invocation details.
func (s *Session) Run(ctx context.Context, command string, timeout time.Duration) (correlate.Result, error) {
	if s.closed.Load() {
		return correlate.Result{}, s.refuse(command, "session is closed", errors.ErrSessionClosed)
	}
	if err := s.tailer.Err(); err != nil {
		return correlate.Result{}, s.refuse(command, "transcript is no longer readable",
			errors.Join(errors.ErrSessionBroken, err))
	}
	if !s.execMu.TryLock() {
		return correlate.Result{}, s.refuse(command, "another command is running", errors.ErrSessionBusy)
	}
	defer s.execMu.Unlock()

	s.invocations.Add(1)
	s.bus.Publish(event.NewInvocationStartedEvent(s.id, s.injector.Target(), command, timeout))

	res, err := s.corr.Run(ctx, command, timeout)
	if err != nil {
		s.reportFailure(res, command, err)
		return res, err
	}

	s.logger.Info("command completed",
		"invocation_id", res.MarkerID,
		"elapsed_ms", res.Elapsed.Milliseconds(),
		"output_bytes", len(res.Output))
	s.bus.Publish(event.NewInvocationCompletedEvent(s.id, res.MarkerID, command,
		res.Elapsed, res.LinesScanned, len(res.Output)))
	return res, nil
}

func (s *Session) reportFailure(res correlate.Result, command string, err error) {
	var corrErr *errors.CorrelationError
	if errors.Is(err, errors.ErrTimedOut) && errors.As(err, &corrErr) {
		s.logger.Warn("command timed out",
			"invocation_id", res.MarkerID,
			"timeout", corrErr.Timeout.String(),
			"state", corrErr.State)
		s.bus.Publish(event.NewInvocationTimedOutEvent(s.id, res.MarkerID, command, corrErr.Timeout, corrErr.State))
		return
	}

	s.logger.Warn("command failed",
		"invocation_id", res.MarkerID,
		"category", errors.Describe(err),
		"error", err.Error())
	s.bus.Publish(event.NewInvocationFailedEvent(s.id, res.MarkerID, command, errors.Describe(err), err))
}

func (s *Session) refuse(command, msg string, cause error) error {
	err := errors.NewSessionError(msg, cause).WithSessionID(s.id)
	s.bus.Publish(event.NewInvocationFailedEvent(s.id, "", command, errors.Describe(err), err))
	return err
}

// Close stops following the transcript, closes the injector if it can be
// closed, and releases the target. Safe to call multiple times; later calls
// return the first call's result. Execute after Close fails with
// ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var errs []error
		if err := s.tailer.Stop(); err != nil {
			errs = append(errs, err)
		}
		if c, ok := s.injector.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.lock.Release(); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)

		s.logger.Info("session closed", "invocations", s.Invocations())
		s.bus.Publish(event.NewSessionClosedEvent(s.id, s.injector.Target(), s.Invocations()))
	})
	return s.closeErr
}
