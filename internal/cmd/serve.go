package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/termrelay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the terminal as an MCP tool over stdio",
	Long: `Serve the terminal as an MCP tool over stdio.

One session is opened for the lifetime of the server and every tool call
runs through it, one at a time. Stdout carries MCP traffic only; logs go to
logging.dir or stderr.

Example client entry:

  {"command": "termrelay", "args": ["serve", "--transcript-dir", "~/term-logs"]}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.session, a.cfg.Server, Version, server.WithLogger(a.logger))
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}
