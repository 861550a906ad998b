package correlate

import (
	"context"
	"strings"
	"time"

	"github.com/Iron-Ham/termrelay/internal/capture"
	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/inject"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

// Buffer is the part of capture.LineBuffer the correlator reads.
type Buffer interface {
	Reset()
	Since(generation uint64, from int64) capture.Snapshot
	Notify() <-chan struct{}
}

// Config controls marker generation and waiting.
type Config struct {
	DefaultTimeout time.Duration
	PollInterval   time.Duration
	StartPrefix    string
	EndPrefix      string
	QuoteEcho      bool
	IDGenerator    IDGenerator
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		StartPrefix:    DefaultStartPrefix,
		EndPrefix:      DefaultEndPrefix,
		QuoteEcho:      true,
		IDGenerator:    UUIDGenerator(DefaultIDLength),
	}
}

// Result describes a completed invocation.
type Result struct {
	Output       string
	MarkerID     string
	Elapsed      time.Duration
	LinesScanned int
}

// Correlator injects commands wrapped in marker echoes and waits for their
// output to appear in the buffer. It is not safe for concurrent use: the
// buffer is reset at the start of every invocation.
type Correlator struct {
	buffer   Buffer
	injector inject.Injector
	cfg      Config
	logger   *logging.Logger
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a correlator reading buffer and typing through injector.
// Zero fields of cfg take their defaults.
func New(buffer Buffer, injector inject.Injector, cfg Config, opts ...Option) *Correlator {
	def := DefaultConfig()
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.StartPrefix == "" {
		cfg.StartPrefix = def.StartPrefix
	}
	if cfg.EndPrefix == "" {
		cfg.EndPrefix = def.EndPrefix
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = def.IDGenerator
	}

	c := &Correlator{
		buffer:   buffer,
		injector: injector,
		cfg:      cfg,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("correlator")
	return c
}

// Execute runs command and returns its cleaned output.
func (c *Correlator) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	res, err := c.Run(ctx, command, timeout)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Run injects command between a fresh pair of markers and waits for the end
// marker. A timeout <= 0 uses the configured default. The timeout counts from
// the moment the last marker echo was delivered; ctx bounds the whole call.
func (c *Correlator) Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	if err := validateCommand(command); err != nil {
		return Result{}, err
	}
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	pair := NewMarkerPair(c.cfg.IDGenerator, c.cfg.StartPrefix, c.cfg.EndPrefix)
	log := c.logger.WithInvocation(pair.ID())
	began := time.Now()

	c.buffer.Reset()
	scanner := NewScanner(pair)

	for _, line := range []string{
		EchoCommand(pair.Start, c.cfg.QuoteEcho),
		command,
		EchoCommand(pair.End, c.cfg.QuoteEcho),
	} {
		if err := c.injector.Inject(ctx, line); err != nil {
			log.Warn("injection failed", "target", c.injector.Target(), "error", err)
			return Result{MarkerID: pair.ID()}, err
		}
	}
	log.Debug("markers injected", "target", c.injector.Target(), "timeout", timeout.String())

	if err := c.wait(ctx, scanner, timeout); err != nil {
		scanner.timeOut()
		return Result{MarkerID: pair.ID(), Elapsed: time.Since(began), LinesScanned: scanner.LinesScanned()},
			c.failure(err, pair, command, timeout, scanner.State(), log)
	}

	res := Result{
		Output:       scanner.Output(),
		MarkerID:     pair.ID(),
		Elapsed:      time.Since(began),
		LinesScanned: scanner.LinesScanned(),
	}
	log.Debug("invocation completed",
		"elapsed_ms", res.Elapsed.Milliseconds(),
		"lines_scanned", res.LinesScanned,
		"output_bytes", len(res.Output))
	return res, nil
}

// wait polls the buffer until the scanner completes, the timeout passes, or
// ctx is done. A buffer notification or the poll timer wakes it.
func (c *Correlator) wait(ctx context.Context, scanner *Scanner, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()

	for {
		gen, next := scanner.Cursor()
		if scanner.Scan(c.buffer.Since(gen, next)) {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.ErrTimedOut
			}
			return errors.Join(errors.ErrCanceled, ctx.Err())
		case <-deadline.C:
			// One last look; the end marker may have landed with the timer.
			gen, next := scanner.Cursor()
			if scanner.Scan(c.buffer.Since(gen, next)) {
				return nil
			}
			return errors.ErrTimedOut
		case <-c.buffer.Notify():
		case <-poll.C:
		}
	}
}

func (c *Correlator) failure(err error, pair MarkerPair, command string, timeout time.Duration, state State, log *logging.Logger) error {
	if errors.Is(err, errors.ErrCanceled) {
		log.Info("invocation canceled", "state", state.String())
		return errors.NewCorrelationError("invocation canceled", err).
			WithMarkerID(pair.ID()).
			WithCommand(command).
			WithState(state.String())
	}
	log.Warn("end marker not observed", "state", state.String(), "timeout", timeout.String())
	return errors.NewCorrelationError("end marker not observed", err).
		WithMarkerID(pair.ID()).
		WithCommand(command).
		WithTimeout(timeout).
		WithState(state.String())
}

// validateCommand rejects input the target would see as zero or several lines.
func validateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.Join(errors.ErrInvalidInput, errors.New("command is empty"))
	}
	if strings.ContainsAny(command, "\r\n") {
		return errors.Join(errors.ErrInvalidInput, errors.New("command must be a single line"))
	}
	return nil
}
