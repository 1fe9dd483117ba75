// Package cli implements the voicebatch command line.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// Streams are the writers commands print to. Results go to Out, progress and
// summaries to Err.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

type globalOptions struct {
	configPath string
	quiet      bool
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd(streams Streams) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "voicebatch",
		Short: "Batch transcription, synthesis and voice conversion",
		Long: `voicebatch transcribes and synthesizes audio in batches where one bad
item never stops the rest, and runs single voice conversions.

Run "voicebatch serve" for the HTTP and NATS front ends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newTranscribeCmd(opts, streams))
	rootCmd.AddCommand(newConvertCmd(opts))
	rootCmd.AddCommand(newSynthesizeCmd(opts))
	rootCmd.AddCommand(newDialogueCmd(opts, streams))

	return rootCmd
}
