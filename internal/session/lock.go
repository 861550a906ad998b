package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

// lockSuffix is appended to lockName's result to form a lock file name.
const lockSuffix = ".lock"

// held tracks targets owned by sessions in this process. flock semantics for
// two descriptors in one process differ between platforms; the registry
// makes the answer the same everywhere.
var held = struct {
	sync.Mutex
	targets map[string]string // target -> session ID
}{targets: make(map[string]string)}

// Lock records which session owns a target. The same record is written into
// the lock file so a refused caller can say who holds it.
type Lock struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	// Internal fields (not serialized)
	lockFile string
	fl       *flock.Flock
	logger   *logging.Logger
	once     sync.Once
}

// AcquireLock takes exclusive ownership of target for sessionID. With an
// empty lockDir only the in-process registry is consulted. Returns an error
// wrapping ErrTargetLocked if another session holds the target.
// The logger parameter is optional and can be nil.
func AcquireLock(lockDir, target, sessionID string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	held.Lock()
	if owner, ok := held.targets[target]; ok {
		held.Unlock()
		logger.Warn("failed to acquire lock", "target", target, "reason", "owned by session "+owner)
		return nil, errors.NewInjectionError(fmt.Sprintf("owned by session %s", owner), errors.ErrTargetLocked).
			WithTarget(target)
	}
	held.targets[target] = sessionID
	held.Unlock()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &Lock{
		SessionID: sessionID,
		Target:    target,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		logger:    logger,
	}

	if lockDir == "" {
		return lock, nil
	}

	if err := lock.acquireFile(lockDir); err != nil {
		forget(target, sessionID)
		return nil, err
	}
	logger.Debug("target lock acquired", "target", target, "lock_file", lock.lockFile)
	return lock, nil
}

func (l *Lock) acquireFile(lockDir string) error {
	if err := os.MkdirAll(lockDir, 0700); err != nil {
		return errors.NewInjectionError("failed to create lock directory", err).WithTarget(l.Target)
	}

	path := LockPath(lockDir, l.Target)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return errors.NewInjectionError("failed to lock target", err).WithTarget(l.Target)
	}
	if !ok {
		reason := "locked by another process"
		if holder, readErr := ReadLock(path); readErr == nil {
			reason = fmt.Sprintf("locked by PID %d on %s", holder.PID, holder.Hostname)
		}
		l.logger.Warn("failed to acquire lock", "target", l.Target, "reason", reason)
		return errors.NewInjectionError(reason, errors.ErrTargetLocked).WithTarget(l.Target)
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0600)
	}
	if err != nil {
		_ = fl.Unlock()
		return errors.NewInjectionError("failed to write lock file", err).WithTarget(l.Target)
	}

	l.lockFile = path
	l.fl = fl
	return nil
}

// Release gives up ownership. Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	var err error
	l.once.Do(func() {
		if l.fl != nil {
			// Truncate rather than remove: removing would let a waiter lock a
			// fresh inode while another still holds the old one.
			_ = os.Truncate(l.lockFile, 0)
			err = l.fl.Unlock()
		}
		forget(l.Target, l.SessionID)
		l.logger.Debug("target lock released", "target", l.Target)
	})
	return err
}

// Path returns the lock file path, or "" when only the in-process registry is used.
func (l *Lock) Path() string {
	return l.lockFile
}

// ReadLock reads the holder record from a lock file.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// LockPath returns the lock file for target inside lockDir. Distinct
// targets always map to distinct files.
func LockPath(lockDir, target string) string {
	return filepath.Join(lockDir, lockName(target)+lockSuffix)
}

// lockName keeps the sanitized target for readability and appends a digest
// of the raw target, since sanitizing alone is lossy.
func lockName(target string) string {
	sum := sha256.Sum256([]byte(target))
	return sanitizeTarget(target) + "-" + hex.EncodeToString(sum[:8])
}

func sanitizeTarget(target string) string {
	var b strings.Builder
	for _, r := range target {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func forget(target, sessionID string) {
	held.Lock()
	defer held.Unlock()
	if held.targets[target] == sessionID {
		delete(held.targets, target)
	}
}
