package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/book-expert/voicebatch/internal/config"
	"github.com/book-expert/voicebatch/internal/dialogue"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/book-expert/voicebatch/internal/textnorm"
	"github.com/book-expert/voicebatch/internal/tts"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type dialogueOptions struct {
	script    string
	out       string
	language  string
	subtitles bool
}

func newDialogueCmd(global *globalOptions, streams Streams) *cobra.Command {
	opts := &dialogueOptions{}

	cmd := &cobra.Command{
		Use:   "dialogue",
		Short: "Synthesize every line of a dialogue script",
		Long: `Synthesize a script of {"agentId", "text"} lines, each in the voice
registered for its agent, to <out>/voice/<AGENT>-<index>.wav.

With --subtitles the clips are transcribed and word-level SRT files written
to <out>/srt, timed as if the clips were played back to back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDialogue(cmd, global, opts, streams)
		},
	}

	cmd.Flags().StringVar(&opts.script, "script", "", "Dialogue script (JSON array)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output directory (default: paths.output_dir)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language code (default: synthesis.language)")
	cmd.Flags().BoolVar(&opts.subtitles, "subtitles", false, "Write SRT subtitles for each clip")
	cobra.CheckErr(cmd.MarkFlagRequired("script"))

	return cmd
}

func runDialogue(cmd *cobra.Command, global *globalOptions, opts *dialogueOptions, streams Streams) error {
	rt, err := bootstrap(global, false)
	if err != nil {
		return err
	}
	defer rt.close()

	data, err := os.ReadFile(opts.script)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", opts.script, err)
	}

	lines, err := dialogue.ParseScript(data)
	if err != nil {
		rt.log.Error("Rejected script %s: %v", opts.script, err)

		return err
	}

	fs := afero.NewOsFs()

	registry, err := dialogue.LoadRegistry(fs, rt.cfg.Paths.SpeakerRegistry)
	if err != nil {
		return err
	}

	store, closeStore, err := rt.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	settings := dialogue.Settings{
		OutputDir:   firstNonEmpty(opts.out, rt.cfg.Paths.OutputDir),
		Language:    firstNonEmpty(opts.language, rt.cfg.Synthesis.Language),
		ItemTimeout: config.Seconds(rt.cfg.Synthesis.TimeoutSeconds),
		Subtitles:   opts.subtitles,
	}

	deps := dialogue.Deps{
		Fs:       fs,
		Registry: registry,
		Speakers: gate.New(fs, rt.cfg.Paths.SpeakerRoot),
		Synthesizer: tts.NewHTTPClient(rt.cfg.Synthesis.BaseURL, config.Seconds(rt.cfg.Synthesis.TimeoutSeconds)).
			WithTemperature(rt.cfg.Synthesis.Temperature),
		Store:      store,
		Normalizer: textnorm.New(),
	}

	if opts.subtitles {
		transcriptionSettings := rt.transcriptionSettings()
		transcriptionSettings.Language = settings.Language

		service, exec, stackErr := rt.transcriptionStack(settings.OutputDir, transcriptionSettings)
		if stackErr != nil {
			return stackErr
		}
		defer exec.Release()

		deps.Transcriber = service
	}

	result, err := dialogue.New(deps, settings, rt.log).Synthesize(cmd.Context(), lines, newProgressPrinter(streams.Err, global.quiet))
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
		fmt.Fprint(streams.Err, renderSummary("lines", result.ID, result))
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
