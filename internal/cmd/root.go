package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/termrelay/internal/config"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "termrelay",
	Short: "Run commands in a terminal you can only type into and read the log of",
	Long: `termrelay drives a terminal it cannot query directly. It types commands
into the terminal (tmux, an X11 window, or a local pty), follows the session
log the terminal emulator writes, and returns each command's output by
bracketing it between unique echo markers.

It can run one command (exec), read commands from stdin (repl), or serve an
MCP tool over stdio (serve).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error to stderr
func Execute() error {
	rootCmd.Version = Version
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/termrelay/config.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("transcript-dir", "", "directory the terminal emulator writes session logs to")
	flags.String("target", "", "injection target: tmux, xdotool, or pty")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("transcript.dir", flags.Lookup("transcript-dir"))
	_ = viper.BindPFlag("target.kind", flags.Lookup("target"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/termrelay")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TERMRELAY")
	// e.g., TERMRELAY_TRANSCRIPT_DIR for transcript.dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
