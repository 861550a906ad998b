package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete termrelay configuration
type Config struct {
	Transcript TranscriptConfig `mapstructure:"transcript" yaml:"transcript"`
	Target     TargetConfig     `mapstructure:"target" yaml:"target"`
	Correlator CorrelatorConfig `mapstructure:"correlator" yaml:"correlator"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// TranscriptConfig controls how the emulator's log file is found and followed
type TranscriptConfig struct {
	// Dir is the directory the terminal emulator writes its session logs to.
	// Supports a leading ~.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Pattern is the glob matched against file names in Dir (default: "*.log")
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	// Encoding is the IANA name of the transcript's character encoding (default: "utf-8")
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
	// PollIntervalMs is how long the tailer waits for new data before checking again
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// FollowRotation switches to a newer matching file when one appears (default: true)
	FollowRotation bool `mapstructure:"follow_rotation" yaml:"follow_rotation"`
	// FromStart reads the file from the beginning instead of the current end
	FromStart bool `mapstructure:"from_start" yaml:"from_start"`
	// MaxBufferedLines bounds the in-memory line buffer (0 = unbounded)
	MaxBufferedLines int `mapstructure:"max_buffered_lines" yaml:"max_buffered_lines"`
	// StopGraceMs is how long Stop waits for the reader goroutine to exit
	StopGraceMs int `mapstructure:"stop_grace_ms" yaml:"stop_grace_ms"`
}

// TargetConfig selects and tunes the input injection backend
type TargetConfig struct {
	// Kind is the injection backend
	// Options: "tmux", "xdotool", "pty"
	Kind string `mapstructure:"kind" yaml:"kind"`
	// KeystrokeDelayMs is the pause between characters
	KeystrokeDelayMs int `mapstructure:"keystroke_delay_ms" yaml:"keystroke_delay_ms"`
	// FocusDelayMs is the pause after focusing the target before typing
	FocusDelayMs int `mapstructure:"focus_delay_ms" yaml:"focus_delay_ms"`
	// LockDir holds target ownership lock files (default: $XDG_RUNTIME_DIR or the temp dir)
	LockDir string              `mapstructure:"lock_dir" yaml:"lock_dir"`
	Tmux    TmuxTargetConfig    `mapstructure:"tmux" yaml:"tmux"`
	Xdotool XdotoolTargetConfig `mapstructure:"xdotool" yaml:"xdotool"`
	PTY     PTYTargetConfig     `mapstructure:"pty" yaml:"pty"`
}

// TmuxTargetConfig identifies a tmux session
type TmuxTargetConfig struct {
	Session string `mapstructure:"session" yaml:"session"`
}

// XdotoolTargetConfig identifies an X11 window by name or class
type XdotoolTargetConfig struct {
	WindowName  string `mapstructure:"window_name" yaml:"window_name"`
	WindowClass string `mapstructure:"window_class" yaml:"window_class"`
}

// PTYTargetConfig describes the local shell started under a pseudo-terminal
type PTYTargetConfig struct {
	Shell string   `mapstructure:"shell" yaml:"shell"`
	Args  []string `mapstructure:"args" yaml:"args"`
}

// CorrelatorConfig controls markers and waiting behavior
type CorrelatorConfig struct {
	// DefaultTimeoutSeconds applies when a caller passes no timeout
	DefaultTimeoutSeconds int `mapstructure:"default_timeout_seconds" yaml:"default_timeout_seconds"`
	// PollIntervalMs is how often the buffer is re-scanned when no append wakes the correlator
	PollIntervalMs int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	StartPrefix    string `mapstructure:"start_prefix" yaml:"start_prefix"`
	EndPrefix      string `mapstructure:"end_prefix" yaml:"end_prefix"`
	// MarkerIDLength is the number of hex characters in a marker ID (8-32)
	MarkerIDLength int `mapstructure:"marker_id_length" yaml:"marker_id_length"`
	// QuoteEcho quotes the marker prefix in the injected echo so the terminal's
	// echo of the typed line does not itself contain the marker token
	QuoteEcho bool `mapstructure:"quote_echo" yaml:"quote_echo"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the size at which the log file rotates
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// ServerConfig controls the MCP front end
type ServerConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	ToolName string `mapstructure:"tool_name" yaml:"tool_name"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Transcript: TranscriptConfig{
			Dir:              "",
			Pattern:          "*.log",
			Encoding:         "utf-8",
			PollIntervalMs:   50,
			FollowRotation:   true,
			FromStart:        false,
			MaxBufferedLines: 100000,
			StopGraceMs:      1000,
		},
		Target: TargetConfig{
			Kind:             "tmux",
			KeystrokeDelayMs: 10,
			FocusDelayMs:     10,
			PTY: PTYTargetConfig{
				Shell: "/bin/sh",
				Args:  []string{},
			},
		},
		Correlator: CorrelatorConfig{
			DefaultTimeoutSeconds: 10,
			PollIntervalMs:        10,
			StartPrefix:           "Agent Mode Start",
			EndPrefix:             "Agent Mode End",
			MarkerIDLength:        16,
			QuoteEcho:             true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Name:     "termrelay",
			ToolName: "execute_command",
		},
	}
}

// PollInterval returns the tailer poll interval as a time.Duration
func (c *TranscriptConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// StopGrace returns the tailer stop grace period as a time.Duration
func (c *TranscriptConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMs) * time.Millisecond
}

// ResolveDir returns Dir with a leading ~ expanded to the user's home directory.
func (c *TranscriptConfig) ResolveDir() string {
	return ExpandHome(c.Dir)
}

// KeystrokeDelay returns the per-character pause as a time.Duration
func (c *TargetConfig) KeystrokeDelay() time.Duration {
	return time.Duration(c.KeystrokeDelayMs) * time.Millisecond
}

// FocusDelay returns the post-focus pause as a time.Duration
func (c *TargetConfig) FocusDelay() time.Duration {
	return time.Duration(c.FocusDelayMs) * time.Millisecond
}

// ResolveLockDir returns the directory for ownership lock files.
// Falls back to $XDG_RUNTIME_DIR, then the OS temp dir.
func (c *TargetConfig) ResolveLockDir() string {
	if c.LockDir != "" {
		return ExpandHome(c.LockDir)
	}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "termrelay")
	}
	return filepath.Join(os.TempDir(), "termrelay")
}

// DefaultTimeout returns the default invocation timeout as a time.Duration
func (c *CorrelatorConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// PollInterval returns the correlator poll interval as a time.Duration
func (c *CorrelatorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ExpandHome expands a leading ~ or ~/ to the user's home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Transcript defaults
	viper.SetDefault("transcript.dir", defaults.Transcript.Dir)
	viper.SetDefault("transcript.pattern", defaults.Transcript.Pattern)
	viper.SetDefault("transcript.encoding", defaults.Transcript.Encoding)
	viper.SetDefault("transcript.poll_interval_ms", defaults.Transcript.PollIntervalMs)
	viper.SetDefault("transcript.follow_rotation", defaults.Transcript.FollowRotation)
	viper.SetDefault("transcript.from_start", defaults.Transcript.FromStart)
	viper.SetDefault("transcript.max_buffered_lines", defaults.Transcript.MaxBufferedLines)
	viper.SetDefault("transcript.stop_grace_ms", defaults.Transcript.StopGraceMs)

	// Target defaults
	viper.SetDefault("target.kind", defaults.Target.Kind)
	viper.SetDefault("target.keystroke_delay_ms", defaults.Target.KeystrokeDelayMs)
	viper.SetDefault("target.focus_delay_ms", defaults.Target.FocusDelayMs)
	viper.SetDefault("target.lock_dir", defaults.Target.LockDir)
	viper.SetDefault("target.tmux.session", defaults.Target.Tmux.Session)
	viper.SetDefault("target.xdotool.window_name", defaults.Target.Xdotool.WindowName)
	viper.SetDefault("target.xdotool.window_class", defaults.Target.Xdotool.WindowClass)
	viper.SetDefault("target.pty.shell", defaults.Target.PTY.Shell)
	viper.SetDefault("target.pty.args", defaults.Target.PTY.Args)

	// Correlator defaults
	viper.SetDefault("correlator.default_timeout_seconds", defaults.Correlator.DefaultTimeoutSeconds)
	viper.SetDefault("correlator.poll_interval_ms", defaults.Correlator.PollIntervalMs)
	viper.SetDefault("correlator.start_prefix", defaults.Correlator.StartPrefix)
	viper.SetDefault("correlator.end_prefix", defaults.Correlator.EndPrefix)
	viper.SetDefault("correlator.marker_id_length", defaults.Correlator.MarkerIDLength)
	viper.SetDefault("correlator.quote_echo", defaults.Correlator.QuoteEcho)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Server defaults
	viper.SetDefault("server.name", defaults.Server.Name)
	viper.SetDefault("server.tool_name", defaults.Server.ToolName)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "termrelay")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termrelay"
	}
	return filepath.Join(home, ".config", "termrelay")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidTargetKinds returns the list of supported injection backends
func ValidTargetKinds() []string {
	return []string{"tmux", "xdotool", "pty"}
}
