package inject

import (
	"github.com/Iron-Ham/termrelay/internal/config"
	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

// FromConfig builds the injector selected by cfg.Kind. transcriptDir is only
// used by the pty backend, which writes its own transcript there.
func FromConfig(cfg config.TargetConfig, transcriptDir string, logger *logging.Logger) (Injector, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("inject")

	switch cfg.Kind {
	case "tmux":
		return NewTmuxInjector(cfg.Tmux.Session,
			WithTmuxPacer(Pacer{Delay: cfg.KeystrokeDelay()}),
			WithTmuxLogger(logger),
		), nil
	case "xdotool":
		return NewXdotoolInjector(cfg.Xdotool.WindowName, cfg.Xdotool.WindowClass,
			WithXdotoolDelays(cfg.KeystrokeDelay(), cfg.FocusDelay()),
			WithXdotoolLogger(logger),
		), nil
	case "pty":
		p, err := NewPTYInjector(PTYConfig{
			Shell:          cfg.PTY.Shell,
			Args:           cfg.PTY.Args,
			TranscriptDir:  transcriptDir,
			KeystrokeDelay: cfg.KeystrokeDelay(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.NewInjectionError("unknown target kind "+cfg.Kind, errors.ErrInvalidInput).WithBackend(cfg.Kind)
	}
}
