package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/termrelay/internal/tui"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open an interactive console on the terminal",
	Long: `Open a full-screen console: type a command, see its output in the
scrollback above. Up/down recall earlier commands, ctrl+c cancels the running
command, and ctrl+d or "exit" quits.

Use 'termrelay repl' when stdin is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

var consoleTimeout time.Duration

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().DurationVarP(&consoleTimeout, "timeout", "t", 0, "how long to wait for each command (default from config)")
}

func runConsole(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("console needs a terminal; use 'termrelay repl' for piped input")
	}

	a, err := openApp(withQuietStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(contextOf(cmd), a.session, a.session.Target(), consoleTimeout)
}
