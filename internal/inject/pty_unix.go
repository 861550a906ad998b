//go:build !windows

package inject

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"github.com/sourcegraph/conc"
	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

// ptyKillGrace is how long Close waits after SIGTERM before SIGKILL.
const ptyKillGrace = time.Second

// PTYInjector runs a shell under a pseudo-terminal and copies everything the
// terminal displays into a transcript file, standing in for an emulator with
// session logging turned on.
type PTYInjector struct {
	cfg    PTYConfig
	pacer  Pacer
	logger *logging.Logger

	cmd        *exec.Cmd
	ptmx       *os.File
	transcript *os.File
	path       string

	writeMu   sync.Mutex
	exited    atomic.Bool
	waitDone  chan struct{}
	wg        conc.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewPTYInjector starts the shell and its transcript copier.
func NewPTYInjector(cfg PTYConfig, logger *logging.Logger) (*PTYInjector, error) {
	if cfg.Shell == "" {
		cfg.Shell = defaultPTYShell
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.TranscriptDir == "" {
		return nil, errors.NewInjectionError("pty target needs a transcript directory", errors.ErrInvalidInput).
			WithBackend("pty")
	}
	if err := os.MkdirAll(cfg.TranscriptDir, 0755); err != nil {
		return nil, errors.NewInjectionError("cannot create transcript directory", errors.Join(errors.ErrInjectionFailed, err)).
			WithBackend("pty")
	}

	name := cfg.FileName
	if name == "" {
		name = fmt.Sprintf("pty-%s.log", time.Now().Format("20060102-150405.000000"))
	}
	path := filepath.Join(cfg.TranscriptDir, name)
	transcript, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.NewInjectionError("cannot create transcript file", errors.Join(errors.ErrInjectionFailed, err)).
			WithBackend("pty")
	}

	cmd := exec.Command(cfg.Shell, cfg.Args...)
	cmd.Env = append(os.Environ(), "TERM=dumb")
	cmd.Env = append(cmd.Env, cfg.Env...)

	// pty.Start puts the shell in a new session, so its pid is also its
	// process group id.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 50, Cols: 200})
	if err != nil {
		_ = transcript.Close()
		return nil, errors.NewInjectionError("cannot start "+cfg.Shell, errors.Join(errors.ErrTargetNotFound, err)).
			WithBackend("pty").
			WithRetryable(false)
	}

	p := &PTYInjector{
		cfg:        cfg,
		pacer:      Pacer{Delay: cfg.KeystrokeDelay},
		logger:     logger,
		cmd:        cmd,
		ptmx:       ptmx,
		transcript: transcript,
		path:       path,
		waitDone:   make(chan struct{}),
	}

	p.wg.Go(p.copyOutput)
	p.wg.Go(func() {
		defer close(p.waitDone)
		err := cmd.Wait()
		p.exited.Store(true)
		p.logger.Info("pty shell exited", "pid", cmd.Process.Pid, "error", err)
	})

	logger.Info("started pty shell", "shell", cfg.Shell, "pid", cmd.Process.Pid, "transcript", path)
	return p, nil
}

// copyOutput copies terminal output to the transcript until the pty closes.
func (p *PTYInjector) copyOutput() {
	_, err := io.Copy(p.transcript, p.ptmx)
	// Linux reports EIO on the master once the shell side closes.
	if err != nil && !errors.Is(err, unix.EIO) && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("pty output copy stopped", "error", err)
	}
}

// TranscriptPath returns the file the shell's output is written to.
func (p *PTYInjector) TranscriptPath() string {
	return p.path
}

// Target returns "pty:<shell>#<pid>".
func (p *PTYInjector) Target() string {
	return fmt.Sprintf("pty:%s#%d", p.cfg.Shell, p.cmd.Process.Pid)
}

// Inject writes text to the terminal one character at a time, then a
// carriage return, as a keyboard would.
func (p *PTYInjector) Inject(ctx context.Context, text string) error {
	if p.exited.Load() {
		return p.wrap("shell has exited", errors.ErrTargetNotFound)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	for i, r := range text {
		if i > 0 {
			if err := p.pacer.Wait(ctx); err != nil {
				return p.wrap("canceled during delivery", errors.Join(errors.ErrCanceled, err))
			}
		}
		if _, err := p.ptmx.WriteString(string(r)); err != nil {
			return p.wrap("write to pty", errors.Join(errors.ErrInjectionFailed, err))
		}
	}
	if _, err := p.ptmx.WriteString("\r"); err != nil {
		return p.wrap("write to pty", errors.Join(errors.ErrInjectionFailed, err))
	}
	return nil
}

// Close terminates the shell's process group and releases the terminal.
// It is safe to call more than once.
func (p *PTYInjector) Close() error {
	p.closeOnce.Do(func() {
		pgid := p.cmd.Process.Pid
		if !p.exited.Load() {
			if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
				p.logger.Warn("failed to signal pty process group", "pgid", pgid, "error", err)
			}
			select {
			case <-p.waitDone:
			case <-time.After(ptyKillGrace):
				_ = unix.Kill(-pgid, unix.SIGKILL)
				<-p.waitDone
			}
		}

		_ = p.ptmx.Close()
		p.wg.Wait()
		p.closeErr = p.transcript.Close()
	})
	return p.closeErr
}

func (p *PTYInjector) wrap(msg string, cause error) error {
	return errors.NewInjectionError(msg, cause).WithBackend("pty").WithTarget(p.Target())
}

var (
	_ Injector  = (*PTYInjector)(nil)
	_ io.Closer = (*PTYInjector)(nil)
)
