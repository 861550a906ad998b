package config

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "transcript.poll_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

const (
	minMarkerIDLength = 8
	maxMarkerIDLength = 32
	maxPathLength     = 4096
	maxLogSizeMB      = 1000
)

// Validate checks the Config for invalid values and returns all validation errors found.
// An empty transcript.dir is not reported here: commands that need a transcript
// call RequireTranscriptDir.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTranscript()...)
	errors = append(errors, c.validateTarget()...)
	errors = append(errors, c.validateCorrelator()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateServer()...)

	return errors
}

// RequireTranscriptDir reports a validation error when no transcript directory is configured.
func (c *Config) RequireTranscriptDir() error {
	if strings.TrimSpace(c.Transcript.Dir) == "" {
		return ValidationError{
			Field:   "transcript.dir",
			Value:   c.Transcript.Dir,
			Message: "is required (set it in the config file, TERMRELAY_TRANSCRIPT_DIR, or --transcript-dir)",
		}
	}
	return nil
}

func (c *Config) validateTranscript() []ValidationError {
	var errors []ValidationError
	t := c.Transcript

	errors = append(errors, validatePath("transcript.dir", t.Dir)...)

	if t.Pattern == "" {
		errors = append(errors, ValidationError{
			Field:   "transcript.pattern",
			Value:   t.Pattern,
			Message: "must not be empty",
		})
	} else if _, err := path.Match(t.Pattern, ""); err != nil {
		errors = append(errors, ValidationError{
			Field:   "transcript.pattern",
			Value:   t.Pattern,
			Message: fmt.Sprintf("invalid glob: %v", err),
		})
	}

	if t.Encoding != "" {
		if _, err := htmlindex.Get(t.Encoding); err != nil {
			errors = append(errors, ValidationError{
				Field:   "transcript.encoding",
				Value:   t.Encoding,
				Message: "unknown encoding name",
			})
		}
	}

	if t.PollIntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "transcript.poll_interval_ms",
			Value:   t.PollIntervalMs,
			Message: "must be at least 1",
		})
	}

	if t.MaxBufferedLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "transcript.max_buffered_lines",
			Value:   t.MaxBufferedLines,
			Message: "must be non-negative (0 = unbounded)",
		})
	}

	if t.StopGraceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "transcript.stop_grace_ms",
			Value:   t.StopGraceMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateTarget() []ValidationError {
	var errors []ValidationError
	t := c.Target

	if !slices.Contains(ValidTargetKinds(), t.Kind) {
		errors = append(errors, ValidationError{
			Field:   "target.kind",
			Value:   t.Kind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTargetKinds(), ", ")),
		})
	}

	if t.KeystrokeDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "target.keystroke_delay_ms",
			Value:   t.KeystrokeDelayMs,
			Message: "must be non-negative",
		})
	}
	if t.FocusDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "target.focus_delay_ms",
			Value:   t.FocusDelayMs,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validatePath("target.lock_dir", t.LockDir)...)

	switch t.Kind {
	case "xdotool":
		if t.Xdotool.WindowName != "" && t.Xdotool.WindowClass != "" {
			errors = append(errors, ValidationError{
				Field:   "target.xdotool",
				Value:   t.Xdotool.WindowName + " / " + t.Xdotool.WindowClass,
				Message: "set window_name or window_class, not both",
			})
		}
	case "pty":
		if t.PTY.Shell == "" {
			errors = append(errors, ValidationError{
				Field:   "target.pty.shell",
				Value:   t.PTY.Shell,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateCorrelator() []ValidationError {
	var errors []ValidationError
	cc := c.Correlator

	if cc.DefaultTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "correlator.default_timeout_seconds",
			Value:   cc.DefaultTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if cc.PollIntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "correlator.poll_interval_ms",
			Value:   cc.PollIntervalMs,
			Message: "must be at least 1",
		})
	}

	if strings.TrimSpace(cc.StartPrefix) == "" {
		errors = append(errors, ValidationError{
			Field:   "correlator.start_prefix",
			Value:   cc.StartPrefix,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(cc.EndPrefix) == "" {
		errors = append(errors, ValidationError{
			Field:   "correlator.end_prefix",
			Value:   cc.EndPrefix,
			Message: "must not be empty",
		})
	}
	if cc.StartPrefix != "" && cc.StartPrefix == cc.EndPrefix {
		errors = append(errors, ValidationError{
			Field:   "correlator.end_prefix",
			Value:   cc.EndPrefix,
			Message: "must differ from start_prefix",
		})
	}
	for _, p := range []struct{ field, value string }{
		{"correlator.start_prefix", cc.StartPrefix},
		{"correlator.end_prefix", cc.EndPrefix},
	} {
		if strings.ContainsAny(p.value, "'\n\r") {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must not contain quotes or newlines",
			})
		}
	}

	if cc.MarkerIDLength < minMarkerIDLength || cc.MarkerIDLength > maxMarkerIDLength {
		errors = append(errors, ValidationError{
			Field:   "correlator.marker_id_length",
			Value:   cc.MarkerIDLength,
			Message: fmt.Sprintf("must be between %d and %d", minMarkerIDLength, maxMarkerIDLength),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validatePath("logging.dir", c.Logging.Dir)...)

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Server.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.name",
			Value:   c.Server.Name,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.Server.ToolName) == "" || strings.ContainsAny(c.Server.ToolName, " \t\n") {
		errors = append(errors, ValidationError{
			Field:   "server.tool_name",
			Value:   c.Server.ToolName,
			Message: "must be a non-empty name without whitespace",
		})
	}

	return errors
}

// validatePath checks an optional path for characters no filesystem accepts.
func validatePath(field, p string) []ValidationError {
	if p == "" {
		return nil
	}

	var errors []ValidationError
	if strings.ContainsRune(p, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   p,
			Message: "path contains invalid null character",
		})
	}
	if len(p) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   p,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}
	return errors
}
