package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/termrelay/internal/config"
	"github.com/Iron-Ham/termrelay/internal/logging"
	"github.com/Iron-Ham/termrelay/internal/transcript"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View termrelay logs",
	Long: `View and filter the termrelay log file in logging.dir.

Examples:
  # Show the last 50 entries
  termrelay logs

  # Show everything from one session
  termrelay logs -s 3f2a91c0 -n 0

  # Follow logs in real-time
  termrelay logs -f

  # Only warnings and errors from the last hour
  termrelay logs --level warn --since 1h

  # Search for specific patterns
  termrelay logs --grep "timed out|broken"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsSessionID string
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsGrep      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Only show entries for this session ID")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

// logEntry is one parsed JSON log line.
type logEntry struct {
	Time         time.Time      `json:"time"`
	Level        string         `json:"level"`
	Msg          string         `json:"msg"`
	SessionID    string         `json:"session_id,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`
	Component    string         `json:"component,omitempty"`
	Extra        map[string]any `json:"-"`
}

// UnmarshalJSON keeps unknown keys in Extra.
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"time", "level", "msg", "session_id", "invocation_id", "component"} {
		delete(all, known)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

var (
	logTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	logFieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	logLevelStyle = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	}
)

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

func formatLogEntry(entry *logEntry) string {
	var sb strings.Builder

	sb.WriteString(logTimeStyle.Render("[" + entry.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")

	level := strings.ToUpper(entry.Level)
	style, ok := logLevelStyle[level]
	if !ok {
		style = lipgloss.NewStyle()
	}
	sb.WriteString(style.Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	field := func(key string, value any) {
		sb.WriteString(" ")
		sb.WriteString(logFieldStyle.Render(key + "="))
		fmt.Fprintf(&sb, "%v", value)
	}
	if entry.Component != "" {
		field("component", entry.Component)
	}
	if entry.SessionID != "" {
		field("session_id", entry.SessionID)
	}
	if entry.InvocationID != "" {
		field("invocation_id", entry.InvocationID)
	}

	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(k, entry.Extra[k])
	}

	return sb.String()
}

// logFilter holds the --session, --level, --since and --grep selections.
type logFilter struct {
	sessionID string
	minLevel  int
	since     time.Time
	grep      *regexp.Regexp
}

func (f logFilter) passes(entry *logEntry) bool {
	if f.sessionID != "" && !strings.HasPrefix(entry.SessionID, f.sessionID) {
		return false
	}
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && entry.Time.Before(f.since) {
		return false
	}
	if f.grep != nil {
		searchText := entry.Msg
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}
	return true
}

// render returns the display form of line, or "" when it is filtered out.
// Lines that are not JSON are shown as-is.
func (f logFilter) render(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}
	if !f.passes(&entry) {
		return ""
	}
	return formatLogEntry(&entry)
}

func newLogFilter(sessionID, level, since, grep string) (logFilter, error) {
	f := logFilter{sessionID: sessionID, minLevel: -1}
	if level != "" {
		f.minLevel = levelPriority(logging.ParseLevel(level))
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = time.Now().Add(-d)
	}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if cfg.Logging.Dir == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "File logging is disabled. Set logging.dir to keep a log file.")
		return nil
	}
	logDir := config.ExpandHome(cfg.Logging.Dir)
	logPath := filepath.Join(logDir, logging.LogFileName)

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No logs found at %s\n", logPath)
		return nil
	}

	filter, err := newLogFilter(logsSessionID, logsLevel, logsSince, logsGrep)
	if err != nil {
		return err
	}

	if logsFollow {
		return followLogs(cmd, logDir, filter)
	}

	f, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	return displayLogs(f, cmd.OutOrStdout(), logsTail, filter)
}

// displayLogs prints the last tail entries of r that pass filter.
func displayLogs(r io.Reader, out io.Writer, tail int, filter logFilter) error {
	var entries []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if s := filter.render(scanner.Text()); s != "" {
			entries = append(entries, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}
	for _, e := range entries {
		fmt.Fprintln(out, e)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No matching log entries found."))
	}
	return nil
}

// logPrinter is a transcript.LineSink that prints filtered log lines.
type logPrinter struct {
	out    io.Writer
	filter logFilter
}

func (p logPrinter) Append(line string) {
	if s := p.filter.render(line); s != "" {
		fmt.Fprintln(p.out, s)
	}
}

// followLogs tails the log file with the same follower used for terminal
// transcripts, so rotation of termrelay.log is picked up.
func followLogs(cmd *cobra.Command, logDir string, filter logFilter) error {
	tl, err := transcript.NewTailer(transcript.TailerConfig{
		Dir:            logDir,
		Pattern:        logging.LogFileName,
		PollInterval:   100 * time.Millisecond,
		FollowRotation: true,
	}, logPrinter{out: cmd.OutOrStdout(), filter: filter})
	if err != nil {
		return err
	}
	if err := tl.Start(); err != nil {
		return err
	}
	defer tl.Stop()

	fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render("Following logs... (Ctrl+C to stop)"))

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return tl.Err()
}
