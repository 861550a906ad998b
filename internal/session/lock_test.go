package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/termrelay/internal/errors"
)

func TestAcquireLock_InProcess(t *testing.T) {
	first, err := AcquireLock("", "tmux:inproc", "s1", nil)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if first.Path() != "" {
		t.Errorf("Path() = %q, want empty without a lock dir", first.Path())
	}

	_, err = AcquireLock("", "tmux:inproc", "s2", nil)
	if !errors.Is(err, errors.ErrTargetLocked) {
		t.Fatalf("second AcquireLock() error = %v, want ErrTargetLocked", err)
	}
	if !strings.Contains(err.Error(), "s1") {
		t.Errorf("error %q should name the owning session", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := first.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	again, err := AcquireLock("", "tmux:inproc", "s3", nil)
	if err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
	_ = again.Release()
}

func TestAcquireLock_WritesHolder(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "tmux:holder", "sess-a", nil)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer lock.Release()

	if lock.Path() != LockPath(dir, "tmux:holder") {
		t.Errorf("Path() = %q", lock.Path())
	}
	holder, err := ReadLock(lock.Path())
	if err != nil {
		t.Fatalf("ReadLock() error = %v", err)
	}
	if holder.SessionID != "sess-a" || holder.Target != "tmux:holder" || holder.PID != os.Getpid() {
		t.Errorf("holder = %+v", holder)
	}
}

func TestAcquireLock_HeldByAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	path := LockPath(dir, "x11:name=term")

	// A second descriptor stands in for another process.
	other := flock.New(path)
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	data, _ := json.Marshal(map[string]any{"pid": 4242, "hostname": "elsewhere"})
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	_, err = AcquireLock(dir, "x11:name=term", "mine", nil)
	if !errors.Is(err, errors.ErrTargetLocked) {
		t.Fatalf("AcquireLock() error = %v, want ErrTargetLocked", err)
	}
	if !strings.Contains(err.Error(), "PID 4242 on elsewhere") {
		t.Errorf("error %q should describe the holder", err)
	}

	if err := other.Unlock(); err != nil {
		t.Fatal(err)
	}
	lock, err := AcquireLock(dir, "x11:name=term", "mine", nil)
	if err != nil {
		t.Fatalf("AcquireLock() after unlock error = %v", err)
	}
	_ = lock.Release()
}

func TestSanitizeTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tmux:work", "tmux_work"},
		{"x11:class=XTerm", "x11_class_XTerm"},
		{"pty:/bin/sh#123", "pty__bin_sh_123"},
		{"plain-name.1", "plain-name.1"},
		{"", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeTarget(tt.in); got != tt.want {
				t.Errorf("sanitizeTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLockPath_DistinctTargets(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		a, b string
	}{
		{"tmux:a_b", "tmux:a:b"},
		{"pty:/bin/sh", "pty:_bin_sh"},
		{"x11:class=XTerm", "x11:class:XTerm"},
		{"", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			pa, pb := LockPath(dir, tt.a), LockPath(dir, tt.b)
			if pa == pb {
				t.Fatalf("LockPath(%q) and LockPath(%q) both = %q", tt.a, tt.b, pa)
			}
			if filepath.Dir(pa) != dir {
				t.Errorf("LockPath(%q) = %q, want a file directly inside %q", tt.a, pa, dir)
			}
			if LockPath(dir, tt.a) != pa {
				t.Errorf("LockPath(%q) is not stable", tt.a)
			}

			la, err := AcquireLock(dir, tt.a, "sess-a", nil)
			if err != nil {
				t.Fatalf("AcquireLock(%q) error = %v", tt.a, err)
			}
			defer la.Release()
			lb, err := AcquireLock(dir, tt.b, "sess-b", nil)
			if err != nil {
				t.Fatalf("AcquireLock(%q) while %q is held error = %v", tt.b, tt.a, err)
			}
			defer lb.Release()
		})
	}
}
