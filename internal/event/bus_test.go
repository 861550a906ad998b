package event

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/termrelay/internal/logging"
)

// sessionOf extracts the session ID carried by every relay event.
func sessionOf(e Event) string {
	switch ev := e.(type) {
	case InvocationStartedEvent:
		return ev.SessionID
	case InvocationCompletedEvent:
		return ev.SessionID
	case InvocationTimedOutEvent:
		return ev.SessionID
	case InvocationFailedEvent:
		return ev.SessionID
	case TranscriptRotatedEvent:
		return ev.SessionID
	case TranscriptBrokenEvent:
		return ev.SessionID
	case SessionClosedEvent:
		return ev.SessionID
	}
	return ""
}

// recorder collects "type@session" entries from a handler.
type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e.EventType()+"@"+sessionOf(e))
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func newDebugLogger(t *testing.T) (*logging.Logger, string) {
	t.Helper()
	dir := t.TempDir()
	logger, err := logging.NewLogger(dir, "debug")
	if err != nil {
		t.Fatal(err)
	}
	return logger, filepath.Join(dir, logging.LogFileName)
}

func readLog(t *testing.T, logger *logging.Logger, path string) string {
	t.Helper()
	_ = logger.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestBus_RoutesByEventType(t *testing.T) {
	bus := NewBus()

	completed := &recorder{}
	broken := &recorder{}
	bus.Subscribe(TypeInvocationCompleted, completed.handle)
	bus.Subscribe(TypeTranscriptBroken, broken.handle)

	bus.Publish(NewInvocationStartedEvent("s1", "tmux:work", "make", time.Second))
	bus.Publish(NewInvocationCompletedEvent("s1", "m1", "make", 40*time.Millisecond, 12, 300))
	bus.Publish(NewTranscriptRotatedEvent("s2", "/tmp/a.log", "/tmp/b.log"))
	bus.Publish(NewTranscriptBrokenEvent("s2", "/tmp/b.log", errors.New("deleted")))
	bus.Publish(NewInvocationCompletedEvent("s2", "m2", "ls", time.Millisecond, 1, 4))

	tests := []struct {
		name string
		rec  *recorder
		want []string
	}{
		{"completed", completed, []string{"invocation.completed@s1", "invocation.completed@s2"}},
		{"broken", broken, []string{"transcript.broken@s2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.entries()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("received %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBus_InvocationLifecycleOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "all:"+e.EventType())
	})
	bus.Subscribe(TypeInvocationTimedOut, func(e Event) {
		order = append(order, "timeout:"+e.(InvocationTimedOutEvent).State)
	})

	bus.Publish(NewInvocationStartedEvent("s1", "pty:/bin/sh", "sleep 9", 50*time.Millisecond))
	bus.Publish(NewInvocationTimedOutEvent("s1", "m1", "sleep 9", 50*time.Millisecond, "awaiting_end"))
	bus.Publish(NewSessionClosedEvent("s1", "pty:/bin/sh", 1))

	want := []string{
		"all:invocation.started",
		"timeout:awaiting_end",
		"all:invocation.timed_out",
		"all:session.closed",
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("delivery order = %v, want %v", order, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	tests := []struct {
		name        string
		drop        func(first, second string) string
		wantRemoved bool
		wantFirst   int
		wantSecond  int
	}{
		{"first", func(first, _ string) string { return first }, true, 0, 1},
		{"second", func(_, second string) string { return second }, true, 1, 0},
		{"unknown", func(_, _ string) string { return "sub-missing" }, false, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewBus()
			var first, second int
			id1 := bus.Subscribe(TypeInvocationFailed, func(Event) { first++ })
			id2 := bus.Subscribe(TypeInvocationFailed, func(Event) { second++ })

			if removed := bus.Unsubscribe(tt.drop(id1, id2)); removed != tt.wantRemoved {
				t.Errorf("Unsubscribe() = %v, want %v", removed, tt.wantRemoved)
			}
			bus.Publish(NewInvocationFailedEvent("s1", "", "ls", "injection", errors.New("pane gone")))

			if first != tt.wantFirst || second != tt.wantSecond {
				t.Errorf("calls = (%d, %d), want (%d, %d)", first, second, tt.wantFirst, tt.wantSecond)
			}
		})
	}
}

func TestBus_ClearAndCount(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TypeInvocationStarted, func(Event) {})
	bus.Subscribe(TypeTranscriptRotated, func(Event) {})
	bus.SubscribeAll(func(Event) {})

	if got := bus.SubscriptionCount(); got != 3 {
		t.Fatalf("SubscriptionCount() = %d, want 3", got)
	}
	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d, want 0", got)
	}

	// Publishing to a cleared bus delivers nothing.
	bus.Publish(NewSessionClosedEvent("s1", "tmux:work", 0))
}

func TestBus_PanickingHandlerIsLogged(t *testing.T) {
	logger, path := newDebugLogger(t)
	bus := NewBus(WithLogger(logger))

	bus.Subscribe(TypeTranscriptBroken, func(Event) {
		panic("sink exploded")
	})
	bus.SubscribeAll(LogHandler(logger))

	bus.Publish(NewTranscriptBrokenEvent("sess-panic", "/var/log/term.log", errors.New("removed")))

	out := readLog(t, logger, path)
	for _, want := range []string{"event handler panicked", "sink exploded", "transcript.broken", "sess-panic"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestBus_LogHandlerSubscribed(t *testing.T) {
	logger, path := newDebugLogger(t)
	bus := NewBus(WithLogger(logger))
	bus.SubscribeAll(LogHandler(logger))

	long := strings.Repeat("x", 2*maxLoggedCommand)
	bus.Publish(NewInvocationStartedEvent("sess-log", "tmux:build", long, 2*time.Second))
	bus.Publish(NewInvocationFailedEvent("sess-log", "m7", "false", "correlation", errors.New("end marker lost")))
	bus.Publish(NewTranscriptRotatedEvent("sess-log", "/logs/1.log", "/logs/2.log"))

	out := readLog(t, logger, path)
	for _, want := range []string{"invocation.started", "invocation.failed", "end marker lost", "transcript.rotated", "/logs/2.log"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, long) {
		t.Error("command text should be abbreviated in the log")
	}
}

func TestBus_PublishOnNilBus(t *testing.T) {
	var bus *Bus
	bus.Publish(NewSessionClosedEvent("s1", "tmux:work", 3))
}

func TestBus_ConcurrentSessions(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	perSession := make(map[string]int)
	bus.Subscribe(TypeInvocationCompleted, func(e Event) {
		mu.Lock()
		perSession[sessionOf(e)]++
		mu.Unlock()
	})

	const sessions, invocations = 8, 25
	var wg sync.WaitGroup
	for s := range sessions {
		id := fmt.Sprintf("sess-%d", s)
		wg.Go(func() {
			for i := range invocations {
				bus.Publish(NewInvocationCompletedEvent(id, fmt.Sprintf("m%d", i), "echo", time.Millisecond, 1, 5))
			}
		})
	}
	wg.Wait()

	if len(perSession) != sessions {
		t.Fatalf("saw %d sessions, want %d", len(perSession), sessions)
	}
	for id, n := range perSession {
		if n != invocations {
			t.Errorf("%s received %d completions, want %d", id, n, invocations)
		}
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeTranscriptRotated, func(Event) {})
			bus.Publish(NewTranscriptRotatedEvent("s1", "a", "b"))
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
}

func TestBus_SubscriptionIDsUnique(t *testing.T) {
	bus := NewBus()

	ids := make(map[string]bool)
	for i := range 1000 {
		var id string
		if i%2 == 0 {
			id = bus.Subscribe(TypeInvocationStarted, func(Event) {})
		} else {
			id = bus.SubscribeAll(func(Event) {})
		}
		if id == "" || ids[id] {
			t.Fatalf("subscription ID %q empty or reused", id)
		}
		ids[id] = true
	}
}
