package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/server"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Read commands from stdin and run each in the terminal",
	Long: `Read commands from stdin, one per line, and run each in the terminal.

A prompt is shown when stdin is a terminal. Type "exit" or press Ctrl-D to
quit. Errors are printed and the loop continues unless the session can no
longer be used.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

var replTimeout time.Duration

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().DurationVarP(&replTimeout, "timeout", "t", 0, "how long to wait for each command (default from config)")
}

func runRepl(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", titleStyle.Render("termrelay"), mutedStyle.Render(
			fmt.Sprintf("connected to %s, following %s", a.session.Target(), a.session.TranscriptPath())))
	}
	return replLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a.session, replTimeout, interactive)
}

// replLoop executes each line of in until EOF, "exit", or an error that
// leaves the session unusable.
func replLoop(ctx context.Context, in io.Reader, out, errOut io.Writer, exec server.Executor, timeout time.Duration, interactive bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(errOut, promptStyle.Render("relay> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		result, err := exec.Execute(ctx, line, timeout)
		switch {
		case err == nil:
			if result != "" {
				fmt.Fprintln(out, result)
			}
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, errors.ErrSessionClosed), errors.Is(err, errors.ErrSessionBroken):
			return err
		default:
			fmt.Fprintln(errOut, formatError(err))
		}
	}
}
