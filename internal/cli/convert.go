package cli

import (
	"context"

	"github.com/book-expert/voicebatch/internal/config"
	"github.com/book-expert/voicebatch/internal/convert"
	"github.com/book-expert/voicebatch/internal/rvc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newConvertCmd(global *globalOptions) *cobra.Command {
	params := convert.DefaultParams()

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert one recording to a trained voice",
		Long: `Run a single voice conversion. --model_name is resolved under the weight
root (paths.weight_root, or the weight_root environment variable).

Exits 1 when a required parameter is missing or the model file does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(global, false)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()

			if rt.cfg.Conversion.TimeoutSeconds > 0 {
				var cancel context.CancelFunc

				ctx, cancel = context.WithTimeout(ctx, config.Seconds(rt.cfg.Conversion.TimeoutSeconds))
				defer cancel()
			}

			loader := rvc.NewLoader(rt.cfg.Conversion.Binary, rt.cfg.Conversion.Script, rt.log)
			processor := convert.New(afero.NewOsFs(), rt.cfg.Paths.WeightRoot, loader, rt.log)

			report, err := processor.Run(ctx, params)
			if err != nil {
				return err
			}

			cmd.Printf("Wrote %s (%d bytes)\n", report.OutputPath, report.Bytes)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&params.F0UpKey, "f0up_key", 0, "Pitch shift in semitones")
	flags.StringVar(&params.InputPath, "input_path", "", "Input audio file")
	flags.StringVar(&params.IndexPath, "index_path", "", "Retrieval index file")
	flags.StringVar(&params.F0Method, "f0method", convert.DefaultF0Method, "Pitch extraction: pm, harvest, crepe, rmvpe")
	flags.StringVar(&params.OutputPath, "opt_path", "", "Output audio file")
	flags.StringVar(&params.ModelName, "model_name", "", "Model weight file under the weight root")
	flags.Float64Var(&params.IndexRate, "index_rate", convert.DefaultIndexRate, "Index blend rate")
	flags.StringVar(&params.Device, "device", "", "Execution device, e.g. cuda:0")
	flags.BoolVar(&params.IsHalf, "is_half", false, "Use half precision")
	flags.IntVar(&params.FilterRadius, "filter_radius", convert.DefaultFilterRadius, "Median filter radius for pitch")
	flags.IntVar(&params.ResampleSR, "resample_sr", convert.DefaultResampleSR, "Output sample rate, 0 keeps the model rate")
	flags.Float64Var(&params.RMSMixRate, "rms_mix_rate", convert.DefaultRMSMixRate, "Volume envelope mix rate")
	flags.Float64Var(&params.Protect, "protect", convert.DefaultProtect, "Voiceless consonant protection")

	return cmd
}
