package inject

import "time"

// PTYConfig describes the local shell a PTYInjector runs.
type PTYConfig struct {
	// Shell is the program to start (default /bin/sh).
	Shell string
	Args  []string
	// TranscriptDir receives the transcript file the shell's output is copied to.
	TranscriptDir string
	// FileName overrides the generated transcript file name.
	FileName string
	// KeystrokeDelay is the pause between typed characters.
	KeystrokeDelay time.Duration
	// Env is appended to the current environment.
	Env []string
}

const defaultPTYShell = "/bin/sh"
