package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <command...>",
	Short: "Run one command in the terminal and print its output",
	Long: `Run one command in the terminal and print its output.

The arguments are joined with spaces into a single command line. Quote the
command to keep your local shell from interpreting it:

  termrelay exec 'ls -la | head'
  termrelay exec --timeout 30s make test`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

var execTimeout time.Duration

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().DurationVarP(&execTimeout, "timeout", "t", 0, "how long to wait for output (default from config)")
}

func runExec(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := a.session.Execute(ctx, strings.Join(args, " "), execTimeout)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
