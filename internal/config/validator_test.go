package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "target.kind",
		Value:   "x11",
		Message: "must be one of: tmux, xdotool, pty",
	}

	want := "target.kind: must be one of: tmux, xdotool, pty (got: x11)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := ValidationErrors(nil).Error(); got != "" {
			t.Errorf("Error() = %q, want empty", got)
		}
	})

	t.Run("single", func(t *testing.T) {
		errs := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
		if got := errs.Error(); got != "a: bad (got: 1)" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("multiple", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "a", Value: 1, Message: "bad"},
			{Field: "b", Value: 2, Message: "worse"},
		}
		got := errs.Error()
		if !strings.HasPrefix(got, "2 validation errors:") {
			t.Errorf("Error() = %q, want count prefix", got)
		}
		if !strings.Contains(got, "1. a: bad") || !strings.Contains(got, "2. b: worse") {
			t.Errorf("Error() = %q, want numbered entries", got)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"empty pattern", func(c *Config) { c.Transcript.Pattern = "" }, "transcript.pattern"},
		{"bad glob", func(c *Config) { c.Transcript.Pattern = "[" }, "transcript.pattern"},
		{"unknown encoding", func(c *Config) { c.Transcript.Encoding = "klingon-8" }, "transcript.encoding"},
		{"zero transcript poll", func(c *Config) { c.Transcript.PollIntervalMs = 0 }, "transcript.poll_interval_ms"},
		{"negative buffer", func(c *Config) { c.Transcript.MaxBufferedLines = -1 }, "transcript.max_buffered_lines"},
		{"negative grace", func(c *Config) { c.Transcript.StopGraceMs = -1 }, "transcript.stop_grace_ms"},
		{"null in dir", func(c *Config) { c.Transcript.Dir = "/tmp/\x00x" }, "transcript.dir"},
		{"unknown target", func(c *Config) { c.Target.Kind = "vnc" }, "target.kind"},
		{"negative keystroke delay", func(c *Config) { c.Target.KeystrokeDelayMs = -5 }, "target.keystroke_delay_ms"},
		{"negative focus delay", func(c *Config) { c.Target.FocusDelayMs = -5 }, "target.focus_delay_ms"},
		{"xdotool both selectors", func(c *Config) {
			c.Target.Kind = "xdotool"
			c.Target.Xdotool.WindowName = "term"
			c.Target.Xdotool.WindowClass = "XTerm"
		}, "target.xdotool"},
		{"pty without shell", func(c *Config) {
			c.Target.Kind = "pty"
			c.Target.PTY.Shell = ""
		}, "target.pty.shell"},
		{"zero timeout", func(c *Config) { c.Correlator.DefaultTimeoutSeconds = 0 }, "correlator.default_timeout_seconds"},
		{"zero correlator poll", func(c *Config) { c.Correlator.PollIntervalMs = 0 }, "correlator.poll_interval_ms"},
		{"blank start prefix", func(c *Config) { c.Correlator.StartPrefix = "  " }, "correlator.start_prefix"},
		{"blank end prefix", func(c *Config) { c.Correlator.EndPrefix = "" }, "correlator.end_prefix"},
		{"equal prefixes", func(c *Config) { c.Correlator.EndPrefix = c.Correlator.StartPrefix }, "correlator.end_prefix"},
		{"quote in prefix", func(c *Config) { c.Correlator.StartPrefix = "it's" }, "correlator.start_prefix"},
		{"short marker", func(c *Config) { c.Correlator.MarkerIDLength = 4 }, "correlator.marker_id_length"},
		{"long marker", func(c *Config) { c.Correlator.MarkerIDLength = 40 }, "correlator.marker_id_length"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"empty server name", func(c *Config) { c.Server.Name = "" }, "server.name"},
		{"tool name with space", func(c *Config) { c.Server.ToolName = "run it" }, "server.tool_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatalf("Validate() returned no errors, want one for %s", tt.wantField)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error for field %s", ValidationErrors(errs), tt.wantField)
			}
		})
	}
}

func TestValidate_AcceptsValidVariants(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"uppercase log level", func(c *Config) { c.Logging.Level = "DEBUG" }},
		{"gbk encoding", func(c *Config) { c.Transcript.Encoding = "gbk" }},
		{"utf-16le encoding", func(c *Config) { c.Transcript.Encoding = "utf-16le" }},
		{"unbounded buffer", func(c *Config) { c.Transcript.MaxBufferedLines = 0 }},
		{"xdotool by class", func(c *Config) {
			c.Target.Kind = "xdotool"
			c.Target.Xdotool.WindowClass = "XTerm"
		}},
		{"marker bounds", func(c *Config) { c.Correlator.MarkerIDLength = 32 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if errs := cfg.Validate(); len(errs) != 0 {
				t.Errorf("Validate() = %v, want none", ValidationErrors(errs))
			}
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Target.Kind = "vnc"
	cfg.Correlator.MarkerIDLength = 1
	cfg.Logging.MaxBackups = -1

	if errs := cfg.Validate(); len(errs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(errs), ValidationErrors(errs))
	}
}

func TestRequireTranscriptDir(t *testing.T) {
	cfg := Default()
	err := cfg.RequireTranscriptDir()
	if err == nil {
		t.Fatal("RequireTranscriptDir() should fail when dir is empty")
	}
	if !strings.Contains(err.Error(), "transcript.dir") {
		t.Errorf("error = %q, want field name", err.Error())
	}

	cfg.Transcript.Dir = "/tmp/logs"
	if err := cfg.RequireTranscriptDir(); err != nil {
		t.Errorf("RequireTranscriptDir() error = %v", err)
	}
}
