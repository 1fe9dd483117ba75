package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type transcribeOptions struct {
	root     string
	model    string
	language string
}

func newTranscribeCmd(global *globalOptions, streams Streams) *cobra.Command {
	opts := &transcribeOptions{}

	cmd := &cobra.Command{
		Use:   "transcribe [audio paths...]",
		Short: "Transcribe a batch of audio files",
		Long: `Transcribe every listed audio file with one model and print the ordered
JSON result: one [transcript-or-error, path] pair per file.

Paths are resolved against --root (default: paths.audio_root).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, global, opts, streams, args)
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", "", "Directory audio paths are resolved against")
	cmd.Flags().StringVar(&opts.model, "model", "", "Transcription model (default: transcription.model)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language code (default: transcription.language)")

	return cmd
}

func runTranscribe(cmd *cobra.Command, global *globalOptions, opts *transcribeOptions, streams Streams, audios []string) error {
	rt, err := bootstrap(global, false)
	if err != nil {
		return err
	}
	defer rt.close()

	root := rt.cfg.Paths.AudioRoot
	if opts.root != "" {
		root = opts.root
	}

	settings := rt.transcriptionSettings()
	if opts.model != "" {
		settings.Model = opts.model
	}

	if opts.language != "" {
		settings.Language = opts.language
	}

	service, exec, err := rt.transcriptionStack(root, settings)
	if err != nil {
		return err
	}
	defer exec.Release()

	result, err := service.Transcribe(cmd.Context(), audios, newProgressPrinter(streams.Err, global.quiet))
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(streams.Out)
	encoder.SetIndent("", "  ")

	err = encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if !global.quiet {
		fmt.Fprint(streams.Err, renderSummary("transcriptions", result.ID, result))
	}

	return nil
}
