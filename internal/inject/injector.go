package inject

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Injector delivers one line of text to the target and submits it.
//
// Inject focuses the target, types text with per-character pacing, then
// presses Enter. It returns an error wrapping errors.ErrTargetNotFound when
// the target cannot be found and errors.ErrInjectionFailed when delivery
// fails part way. Delivery is best effort: a failure may leave some
// characters typed.
type Injector interface {
	Inject(ctx context.Context, text string) error
	// Target describes the target for logs and ownership locks.
	Target() string
}

// Runner executes an external command and returns its combined output.
// This interface enables testing without tmux or an X server.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// Run executes name with args and returns its combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Pacer spaces out keystrokes.
type Pacer struct {
	Delay time.Duration
}

// Wait sleeps for the pacer's delay. It returns early with ctx.Err() if the
// context ends first.
func (p Pacer) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// commandOutput trims tool output for inclusion in error messages.
func commandOutput(out []byte, err error) string {
	msg := strings.TrimSpace(string(out))
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return msg
}
