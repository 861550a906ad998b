//go:build windows

package inject

import (
	"context"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

// PTYInjector is unavailable on Windows.
type PTYInjector struct{}

// NewPTYInjector always fails on Windows.
func NewPTYInjector(cfg PTYConfig, logger *logging.Logger) (*PTYInjector, error) {
	return nil, errors.NewInjectionError("pty target is not supported on windows", errors.ErrInvalidInput).
		WithBackend("pty")
}

// TranscriptPath returns an empty string.
func (p *PTYInjector) TranscriptPath() string { return "" }

// Target returns "pty".
func (p *PTYInjector) Target() string { return "pty" }

// Inject always fails.
func (p *PTYInjector) Inject(ctx context.Context, text string) error {
	return errors.NewInjectionError("pty target is not supported on windows", errors.ErrTargetNotFound).
		WithBackend("pty").
		WithRetryable(false)
}

// Close does nothing.
func (p *PTYInjector) Close() error { return nil }
