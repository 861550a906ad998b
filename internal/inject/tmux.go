package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

// TmuxInjector types into a tmux session with send-keys.
type TmuxInjector struct {
	session string
	runner  Runner
	pacer   Pacer
	logger  *logging.Logger
}

// TmuxOption configures a TmuxInjector.
type TmuxOption func(*TmuxInjector)

// WithTmuxRunner replaces the command runner. Useful for testing.
func WithTmuxRunner(r Runner) TmuxOption {
	return func(t *TmuxInjector) {
		t.runner = r
	}
}

// WithTmuxPacer sets the pause between keystrokes.
func WithTmuxPacer(p Pacer) TmuxOption {
	return func(t *TmuxInjector) {
		t.pacer = p
	}
}

// WithTmuxLogger sets the logger.
func WithTmuxLogger(l *logging.Logger) TmuxOption {
	return func(t *TmuxInjector) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTmuxInjector creates an injector for the named tmux session.
func NewTmuxInjector(session string, opts ...TmuxOption) *TmuxInjector {
	t := &TmuxInjector{
		session: session,
		runner:  ExecRunner{},
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Target returns "tmux:<session>".
func (t *TmuxInjector) Target() string {
	return "tmux:" + t.session
}

// Inject checks the session exists, sends text one key at a time, then Enter.
func (t *TmuxInjector) Inject(ctx context.Context, text string) error {
	if t.session == "" {
		return t.wrap("no tmux session configured", errors.ErrTargetNotFound)
	}

	out, err := t.runner.Run(ctx, "tmux", "has-session", "-t", "="+t.session)
	if err != nil {
		if ctx.Err() != nil {
			return t.wrap("canceled before delivery", errors.Join(errors.ErrCanceled, ctx.Err()))
		}
		return t.wrap(commandOutput(out, err), errors.ErrTargetNotFound)
	}

	for i, r := range text {
		if i > 0 {
			if err := t.pacer.Wait(ctx); err != nil {
				return t.wrap("canceled during delivery", errors.Join(errors.ErrCanceled, err))
			}
		}
		key, literal := tmuxKey(r)
		if err := t.sendKeys(ctx, key, literal); err != nil {
			return err
		}
	}

	if err := t.pacer.Wait(ctx); err != nil {
		return t.wrap("canceled before submit", errors.Join(errors.ErrCanceled, err))
	}
	if err := t.sendKeys(ctx, "Enter", false); err != nil {
		return err
	}

	t.logger.Debug("injected text", "target", t.Target(), "chars", len([]rune(text)))
	return nil
}

func (t *TmuxInjector) sendKeys(ctx context.Context, key string, literal bool) error {
	args := []string{"send-keys", "-t", "=" + t.session + ":"}
	if literal {
		args = append(args, "-l")
	}
	args = append(args, key)

	out, err := t.runner.Run(ctx, "tmux", args...)
	if err == nil {
		return nil
	}
	if isSessionNotFoundError(out) {
		return t.wrap(commandOutput(out, err), errors.ErrTargetNotFound)
	}
	return t.wrap(fmt.Sprintf("send-keys %q: %s", key, commandOutput(out, err)), errors.ErrInjectionFailed)
}

func (t *TmuxInjector) wrap(msg string, cause error) error {
	return errors.NewInjectionError(msg, cause).WithBackend("tmux").WithTarget(t.session)
}

// tmuxKey maps a rune to a send-keys argument and whether it is sent with -l.
func tmuxKey(r rune) (key string, literal bool) {
	switch r {
	case '\r', '\n':
		return "Enter", false
	case '\t':
		return "Tab", false
	case '\x7f', '\b':
		return "BSpace", false
	case '\x1b':
		return "Escape", false
	case ' ':
		return "Space", false
	case ';':
		// A bare ";" argument is tmux's command separator and would be
		// swallowed; tmux turns a trailing "\;" back into a literal ";".
		return `\;`, true
	}
	if r < 32 {
		return fmt.Sprintf("C-%c", r+'a'-1), false
	}
	return string(r), true
}

// isSessionNotFoundError checks tmux output for a missing session or server.
func isSessionNotFoundError(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "session not found") ||
		strings.Contains(s, "no server running") ||
		strings.Contains(s, "can't find session") ||
		strings.Contains(s, "can't find pane")
}

var _ Injector = (*TmuxInjector)(nil)
