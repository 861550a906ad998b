package correlate

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/termrelay/internal/capture"
	"github.com/Iron-Ham/termrelay/internal/errors"
)

// fakeShell stands in for a terminal whose transcript lands in buf. Echo
// commands print their arguments with quotes removed; other commands print
// whatever respond returns, after delay.
type fakeShell struct {
	buf       *capture.LineBuffer
	echoTyped bool
	delay     time.Duration
	respond   func(cmd string) []string
	swallow   string
	failOn    int
	failWith  error

	mu    sync.Mutex
	calls []string
	wg    sync.WaitGroup
}

func (f *fakeShell) Target() string { return "fake:shell" }

func (f *fakeShell) Inject(_ context.Context, text string) error {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	n := len(f.calls)
	f.mu.Unlock()

	if f.failWith != nil && n == f.failOn {
		return f.failWith
	}
	if f.echoTyped {
		f.buf.Append("$ " + text + "\n")
	}
	if f.swallow != "" && strings.Contains(text, f.swallow) {
		return nil
	}

	var out []string
	if rest, ok := strings.CutPrefix(text, "echo "); ok {
		out = []string{strings.ReplaceAll(rest, "'", "")}
	} else if f.respond != nil {
		out = f.respond(text)
	}

	emit := func() {
		for _, l := range out {
			f.buf.Append(l + "\n")
		}
	}
	if f.delay > 0 && !strings.HasPrefix(text, "echo ") {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			time.Sleep(f.delay)
			emit()
		}()
		return nil
	}
	emit()
	return nil
}

func (f *fakeShell) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func fixedID(id string) IDGenerator {
	return func() string { return id }
}

func newTestCorrelator(buf *capture.LineBuffer, sh *fakeShell, cfg Config) *Correlator {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = fixedID("0a1b2c3d4e5f6071")
	}
	cfg.QuoteEcho = true
	return New(buf, sh, cfg)
}

func TestCorrelator_ListScenario(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{
		buf: buf,
		respond: func(cmd string) []string {
			if cmd == "ls" {
				return []string{"file1.txt", "file2.txt"}
			}
			return nil
		},
	}
	c := newTestCorrelator(buf, sh, Config{})

	out, err := c.Execute(context.Background(), "ls", time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "file1.txt\nfile2.txt" {
		t.Errorf("Execute() = %q, want %q", out, "file1.txt\nfile2.txt")
	}

	want := []string{
		"echo 'Agent Mode Start' 0a1b2c3d4e5f6071",
		"ls",
		"echo 'Agent Mode End' 0a1b2c3d4e5f6071",
	}
	if got := sh.Calls(); !slices.Equal(got, want) {
		t.Errorf("injected %q, want %q", got, want)
	}
}

func TestCorrelator_TypedEchoDoesNotStartEarly(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{
		buf:       buf,
		echoTyped: true,
		respond:   func(string) []string { return []string{"hello"} },
	}
	c := newTestCorrelator(buf, sh, Config{})

	out, err := c.Execute(context.Background(), "greet", time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "$ greet\nhello" {
		t.Errorf("Execute() = %q, want %q", out, "$ greet\nhello")
	}
}

func TestCorrelator_DelayedOutput(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{
		buf:     buf,
		delay:   80 * time.Millisecond,
		respond: func(string) []string { return []string{"slow"} },
	}
	// A real shell prints the end marker only after the command finishes.
	sh.swallow = "Agent Mode End"
	c := newTestCorrelator(buf, sh, Config{})

	go func() {
		time.Sleep(150 * time.Millisecond)
		buf.Append("Agent Mode End 0a1b2c3d4e5f6071\n")
	}()

	res, err := c.Run(context.Background(), "sleep 0.08; echo slow", 2*time.Second)
	sh.wg.Wait()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Output != "slow" {
		t.Errorf("Output = %q, want %q", res.Output, "slow")
	}
	if res.MarkerID != "0a1b2c3d4e5f6071" {
		t.Errorf("MarkerID = %q", res.MarkerID)
	}
	if res.Elapsed < 100*time.Millisecond {
		t.Errorf("Elapsed = %v, want at least the output delay", res.Elapsed)
	}
	if res.LinesScanned != 3 {
		t.Errorf("LinesScanned = %d, want 3", res.LinesScanned)
	}
}

func TestCorrelator_TimesOut(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{
		buf:     buf,
		swallow: "Agent Mode End",
		respond: func(string) []string { return []string{"never finishes"} },
	}
	c := newTestCorrelator(buf, sh, Config{})

	const timeout = 200 * time.Millisecond
	start := time.Now()
	out, err := c.Execute(context.Background(), "sleep 100", timeout)
	elapsed := time.Since(start)

	if out != "" {
		t.Errorf("Execute() returned partial output %q", out)
	}
	if !errors.Is(err, errors.ErrTimedOut) {
		t.Fatalf("Execute() error = %v, want ErrTimedOut", err)
	}
	var corrErr *errors.CorrelationError
	if !errors.As(err, &corrErr) {
		t.Fatalf("error type = %T, want *CorrelationError", err)
	}
	if corrErr.MarkerID != "0a1b2c3d4e5f6071" || corrErr.Command != "sleep 100" {
		t.Errorf("error context = %+v", corrErr)
	}
	if corrErr.State != StateTimedOut.String() {
		t.Errorf("State = %q, want %q", corrErr.State, StateTimedOut.String())
	}
	if !errors.IsRetryable(err) {
		t.Error("timeouts should be retryable")
	}
	if elapsed < timeout || elapsed > timeout+300*time.Millisecond {
		t.Errorf("elapsed = %v, want about %v", elapsed, timeout)
	}
}

func TestCorrelator_DefaultTimeout(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{buf: buf, swallow: "Agent Mode End"}
	c := newTestCorrelator(buf, sh, Config{DefaultTimeout: 100 * time.Millisecond})

	_, err := c.Execute(context.Background(), "true", 0)
	var corrErr *errors.CorrelationError
	if !errors.As(err, &corrErr) {
		t.Fatalf("error = %v, want *CorrelationError", err)
	}
	if corrErr.Timeout != 100*time.Millisecond {
		t.Errorf("Timeout = %v, want 100ms", corrErr.Timeout)
	}
}

func TestCorrelator_ContextDeadlineWins(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{buf: buf, swallow: "Agent Mode End"}
	c := newTestCorrelator(buf, sh, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Execute(ctx, "true", 10*time.Second)
	if !errors.Is(err, errors.ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("elapsed = %v, context deadline ignored", elapsed)
	}
}

func TestCorrelator_Canceled(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{buf: buf, swallow: "Agent Mode End"}
	c := newTestCorrelator(buf, sh, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.Execute(ctx, "true", 10*time.Second)
	if !errors.Is(err, errors.ErrCanceled) {
		t.Fatalf("error = %v, want ErrCanceled", err)
	}
	if errors.Is(err, errors.ErrTimedOut) {
		t.Error("cancellation should not look like a timeout")
	}
}

func TestCorrelator_InjectionFailure(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	injErr := errors.NewInjectionError("no such session", errors.ErrTargetNotFound)
	sh := &fakeShell{buf: buf, failOn: 1, failWith: injErr}
	c := newTestCorrelator(buf, sh, Config{})

	_, err := c.Execute(context.Background(), "ls", time.Second)
	if !errors.Is(err, errors.ErrTargetNotFound) {
		t.Fatalf("error = %v, want ErrTargetNotFound", err)
	}
	if errors.Is(err, errors.ErrTimedOut) {
		t.Error("injection failure must stay distinguishable from a timeout")
	}
	if n := len(sh.Calls()); n != 1 {
		t.Errorf("injected %d lines after failure, want 1", n)
	}
}

func TestCorrelator_FailureMidInvocation(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{buf: buf, failOn: 2, failWith: errors.ErrInjectionFailed}
	c := newTestCorrelator(buf, sh, Config{})

	if _, err := c.Execute(context.Background(), "ls", time.Second); !errors.Is(err, errors.ErrInjectionFailed) {
		t.Fatalf("error = %v, want ErrInjectionFailed", err)
	}
	if n := len(sh.Calls()); n != 2 {
		t.Errorf("injected %d lines, want 2", n)
	}
}

func TestCorrelator_RejectsInvalidCommands(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"newline", "ls\nrm -rf /"},
		{"carriage return", "ls\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture.NewLineBuffer(0)
			sh := &fakeShell{buf: buf}
			c := newTestCorrelator(buf, sh, Config{})

			_, err := c.Execute(context.Background(), tt.command, time.Second)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
			if len(sh.Calls()) != 0 {
				t.Error("invalid command reached the injector")
			}
		})
	}
}

func TestCorrelator_ResetDropsStaleOutput(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	// Leftovers from an earlier invocation that used the same marker.
	buf.Append("Agent Mode Start 0a1b2c3d4e5f6071\n")
	buf.Append("stale\n")
	buf.Append("Agent Mode End 0a1b2c3d4e5f6071\n")

	sh := &fakeShell{
		buf:     buf,
		respond: func(string) []string { return []string{"fresh"} },
	}
	c := newTestCorrelator(buf, sh, Config{})

	out, err := c.Execute(context.Background(), "date", time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "fresh" {
		t.Errorf("Execute() = %q, want %q", out, "fresh")
	}
}

func TestCorrelator_FreshMarkersPerInvocation(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{buf: buf}
	c := New(buf, sh, Config{QuoteEcho: true})

	first, err := c.Run(context.Background(), "true", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Run(context.Background(), "true", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if first.MarkerID == second.MarkerID {
		t.Errorf("marker id %q reused", first.MarkerID)
	}
	if len(first.MarkerID) != DefaultIDLength {
		t.Errorf("len(MarkerID) = %d, want %d", len(first.MarkerID), DefaultIDLength)
	}
}

func TestCorrelator_EmptyOutput(t *testing.T) {
	buf := capture.NewLineBuffer(0)
	sh := &fakeShell{buf: buf, respond: func(string) []string { return []string{"", "  "} }}
	c := newTestCorrelator(buf, sh, Config{})

	out, err := c.Execute(context.Background(), "true", time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "" {
		t.Errorf("Execute() = %q, want empty", out)
	}
}
