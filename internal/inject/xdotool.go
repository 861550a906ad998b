package inject

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

// XdotoolInjector types into an X11 window found by name or class.
type XdotoolInjector struct {
	windowName  string
	windowClass string
	runner      Runner
	delay       time.Duration
	focusDelay  time.Duration
	logger      *logging.Logger
}

// XdotoolOption configures an XdotoolInjector.
type XdotoolOption func(*XdotoolInjector)

// WithXdotoolRunner replaces the command runner. Useful for testing.
func WithXdotoolRunner(r Runner) XdotoolOption {
	return func(x *XdotoolInjector) {
		x.runner = r
	}
}

// WithXdotoolDelays sets the per-character delay and the pause after focusing.
func WithXdotoolDelays(keystroke, focus time.Duration) XdotoolOption {
	return func(x *XdotoolInjector) {
		x.delay = keystroke
		x.focusDelay = focus
	}
}

// WithXdotoolLogger sets the logger.
func WithXdotoolLogger(l *logging.Logger) XdotoolOption {
	return func(x *XdotoolInjector) {
		if l != nil {
			x.logger = l
		}
	}
}

// NewXdotoolInjector creates an injector for the first window whose title
// matches windowName, or whose class matches windowClass when no name is given.
func NewXdotoolInjector(windowName, windowClass string, opts ...XdotoolOption) *XdotoolInjector {
	x := &XdotoolInjector{
		windowName:  windowName,
		windowClass: windowClass,
		runner:      ExecRunner{},
		delay:       10 * time.Millisecond,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Target returns "x11:name=<name>" or "x11:class=<class>".
func (x *XdotoolInjector) Target() string {
	if x.windowName != "" {
		return "x11:name=" + x.windowName
	}
	return "x11:class=" + x.windowClass
}

// Inject activates the window, types text with xdotool's per-character
// delay, then presses Return.
func (x *XdotoolInjector) Inject(ctx context.Context, text string) error {
	id, err := x.findWindow(ctx)
	if err != nil {
		return err
	}

	if out, err := x.runner.Run(ctx, "xdotool", "windowactivate", "--sync", id); err != nil {
		return x.wrap("windowactivate: "+commandOutput(out, err), x.cause(ctx, errors.ErrTargetNotFound))
	}
	if err := (Pacer{Delay: x.focusDelay}).Wait(ctx); err != nil {
		return x.wrap("canceled after focus", errors.Join(errors.ErrCanceled, err))
	}

	delayMs := strconv.FormatInt(x.delay.Milliseconds(), 10)
	if out, err := x.runner.Run(ctx, "xdotool", "type", "--delay", delayMs, "--", text); err != nil {
		return x.wrap("type: "+commandOutput(out, err), x.cause(ctx, errors.ErrInjectionFailed))
	}
	if out, err := x.runner.Run(ctx, "xdotool", "key", "Return"); err != nil {
		return x.wrap("key Return: "+commandOutput(out, err), x.cause(ctx, errors.ErrInjectionFailed))
	}

	x.logger.Debug("injected text", "target", x.Target(), "window", id, "chars", len([]rune(text)))
	return nil
}

func (x *XdotoolInjector) findWindow(ctx context.Context) (string, error) {
	args := []string{"search", "--onlyvisible"}
	switch {
	case x.windowName != "":
		args = append(args, "--name", x.windowName)
	case x.windowClass != "":
		args = append(args, "--class", x.windowClass)
	default:
		return "", x.wrap("no window name or class configured", errors.ErrTargetNotFound)
	}

	out, err := x.runner.Run(ctx, "xdotool", args...)
	if err != nil {
		// xdotool search exits 1 when nothing matches.
		return "", x.wrap("no matching window: "+commandOutput(out, err), x.cause(ctx, errors.ErrTargetNotFound))
	}
	for _, line := range strings.Split(string(out), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			return id, nil
		}
	}
	return "", x.wrap("no matching window", errors.ErrTargetNotFound)
}

// cause prefers cancellation over the backend failure when ctx has ended.
func (x *XdotoolInjector) cause(ctx context.Context, fallback error) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(errors.ErrCanceled, err)
	}
	return fallback
}

func (x *XdotoolInjector) wrap(msg string, cause error) error {
	return errors.NewInjectionError(msg, cause).WithBackend("xdotool").WithTarget(x.Target())
}

var _ Injector = (*XdotoolInjector)(nil)
