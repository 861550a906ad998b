package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/termrelay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify termrelay configuration",
	Long: `View or modify termrelay configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  termrelay config set transcript.dir ~/term-logs
  termrelay config set target.kind xdotool
  termrelay config set correlator.default_timeout_seconds 30

Run 'termrelay config keys' for the full list.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List keys accepted by 'config set'",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, key := range settableKeyNames() {
			fmt.Fprintf(out, "  %-40s %s\n", keyStyle.Render(key), mutedStyle.Render(string(settableKeys[key])))
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/termrelay/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
}

type keyKind string

const (
	kindString keyKind = "string"
	kindBool   keyKind = "bool"
	kindInt    keyKind = "int"
)

var settableKeys = map[string]keyKind{
	"transcript.dir":                     kindString,
	"transcript.pattern":                 kindString,
	"transcript.encoding":                kindString,
	"transcript.poll_interval_ms":        kindInt,
	"transcript.follow_rotation":         kindBool,
	"transcript.from_start":              kindBool,
	"transcript.max_buffered_lines":      kindInt,
	"transcript.stop_grace_ms":           kindInt,
	"target.kind":                        kindString,
	"target.keystroke_delay_ms":          kindInt,
	"target.focus_delay_ms":              kindInt,
	"target.lock_dir":                    kindString,
	"target.tmux.session":                kindString,
	"target.xdotool.window_name":         kindString,
	"target.xdotool.window_class":        kindString,
	"target.pty.shell":                   kindString,
	"correlator.default_timeout_seconds": kindInt,
	"correlator.poll_interval_ms":        kindInt,
	"correlator.start_prefix":            kindString,
	"correlator.end_prefix":              kindString,
	"correlator.marker_id_length":        kindInt,
	"correlator.quote_echo":              kindBool,
	"logging.level":                      kindString,
	"logging.dir":                        kindString,
	"logging.max_size_mb":                kindInt,
	"logging.max_backups":                kindInt,
	"server.name":                        kindString,
	"server.tool_name":                   kindString,
}

func settableKeyNames() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseConfigValue converts the command-line text for key into the type
// the config struct expects.
func parseConfigValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'termrelay config keys' to see valid keys", key)
	}

	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	default:
		return value, nil
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "%s %s\n\n", mutedStyle.Render("# config file:"), used)
	} else {
		fmt.Fprintf(out, "%s\n\n", mutedStyle.Render("# config file: (none - using defaults)"))
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	value, err := parseConfigValue(key, raw)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, value)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s = %v\n", successStyle.Render("Set"), key, value)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

const configHeader = `# termrelay configuration
#
# transcript.dir must point at the directory your terminal emulator writes
# session logs to (unless target.kind is pty, which writes its own).
# Every key can also be set through TERMRELAY_* environment variables,
# e.g. TERMRELAY_TRANSCRIPT_DIR or TERMRELAY_TARGET_KIND.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s\nUse 'termrelay config set' to modify values or --force to overwrite", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configFile, append([]byte(configHeader), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", successStyle.Render("Created config file at"), configFile)
	fmt.Fprintln(out, "Set transcript.dir before running exec, repl, or serve.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", infoStyle.Render(used))
	} else {
		fmt.Fprintf(out, "Default path: %s %s\n", config.ConfigFile(), warningStyle.Render("(not created)"))
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: TERMRELAY_* (e.g., TERMRELAY_TRANSCRIPT_DIR, TERMRELAY_TARGET_KIND)")
	return nil
}
