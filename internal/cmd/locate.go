package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/termrelay/internal/config"
	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/transcript"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the transcript file that would be followed",
	Long: `Print the transcript file that would be followed: the most recently
modified file in transcript.dir matching transcript.pattern.`,
	Args: cobra.NoArgs,
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireTranscriptDir(); err != nil {
		return errors.Join(errors.ErrInvalidInput, err)
	}

	path, err := transcript.Locate(afero.NewOsFs(), cfg.Transcript.ResolveDir(), cfg.Transcript.Pattern)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
