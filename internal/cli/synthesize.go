package cli

import (
	"fmt"

	"github.com/book-expert/voicebatch/internal/atomicfile"
	"github.com/book-expert/voicebatch/internal/config"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/tts"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	synthesizeUsage = "Usage: voicebatch synthesize <text> <speaker_wav> <language> <output_wav>"
	synthesizeArgs  = 4
	outputFileMode  = 0o644
)

func newSynthesizeCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "synthesize <text> <speaker_wav> <language> <output_wav>",
		Short: "Synthesize one utterance in a reference voice",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != synthesizeArgs {
				return &UsageError{Usage: synthesizeUsage}
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			text, speakerWAV, language, outputWAV := args[0], args[1], args[2], args[3]

			rt, err := bootstrap(global, false)
			if err != nil {
				return err
			}
			defer rt.close()

			client := tts.NewHTTPClient(rt.cfg.Synthesis.BaseURL, config.Seconds(rt.cfg.Synthesis.TimeoutSeconds)).
				WithTemperature(rt.cfg.Synthesis.Temperature)

			rt.log.Info("Synthesizing %d characters with %s (%s) to %s", len(text), speakerWAV, language, outputWAV)

			audio, err := client.Synthesize(cmd.Context(), core.SynthesisRequest{
				Text:           text,
				SpeakerRefPath: speakerWAV,
				Language:       language,
			})
			if err != nil {
				rt.log.Error("Synthesis failed: %v", err)

				return err
			}

			err = atomicfile.Write(afero.NewOsFs(), outputWAV, audio, outputFileMode)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", outputWAV, err)
			}

			cmd.Printf("Audio saved to %s\n", outputWAV)

			return nil
		},
	}
}
