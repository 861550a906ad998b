package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/termrelay/internal/config"
	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/event"
	"github.com/Iron-Ham/termrelay/internal/inject"
	"github.com/Iron-Ham/termrelay/internal/logging"
	"github.com/Iron-Ham/termrelay/internal/session"
)

// app is everything a command needs to run commands on the target.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	session *session.Session
	tempDir string
}

type appOptions struct {
	// quiet discards logs instead of writing them to stderr when no log
	// directory is configured.
	quiet bool
}

type appOption func(*appOptions)

func withQuietStderr() appOption {
	return func(o *appOptions) { o.quiet = true }
}

// openApp loads the config, opens the logger, builds the injector and
// starts a session. The caller must Close the result.
func openApp(opts ...appOption) (*app, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Dir != "" || !o.quiet {
		logger, err = newLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, logger: logger}
	a.bus = event.NewBus(event.WithLogger(logger))
	a.bus.SubscribeAll(event.LogHandler(logger.WithComponent("events")))

	transcriptDir := cfg.Transcript.ResolveDir()
	if cfg.Target.Kind == "pty" && transcriptDir == "" {
		// The pty backend writes its own transcript; give it a private directory.
		a.tempDir, err = os.MkdirTemp("", "termrelay-pty-")
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create transcript directory: %w", err)
		}
		transcriptDir = a.tempDir
	} else if err := cfg.RequireTranscriptDir(); err != nil {
		_ = a.Close()
		return nil, errors.Join(errors.ErrInvalidInput, err)
	}

	injector, err := inject.FromConfig(cfg.Target, transcriptDir, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.session, err = session.New(session.FromConfig(cfg, transcriptDir), injector,
		session.WithLogger(logger),
		session.WithBus(a.bus),
	)
	if err != nil {
		if c, ok := injector.(io.Closer); ok {
			_ = c.Close()
		}
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the session, logger, and any temporary transcript directory.
func (a *app) Close() error {
	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.tempDir != "" {
		errs = append(errs, os.RemoveAll(a.tempDir))
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// newLogger opens the configured log destination. Stdout is never used.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	rotation := logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   false,
	}
	return logging.NewLoggerWithRotation(config.ExpandHome(cfg.Dir), cfg.Level, rotation)
}

// formatError renders err for the terminal, led by the category a caller
// acts on when termrelay knows it.
func formatError(err error) string {
	label := "Error"
	var relayErr errors.RelayError
	var verrs config.ValidationErrors
	var verr config.ValidationError
	switch {
	case errors.As(err, &relayErr), errors.Is(err, errors.ErrInvalidInput):
		label = errors.Describe(err)
	case errors.As(err, &verrs), errors.As(err, &verr):
		label = "invalid configuration"
	}
	msg := errorStyle.Render(label+":") + " " + err.Error()
	if errors.IsRetryable(err) {
		msg += " (" + errors.RetryHint + ")"
	}
	return msg
}
