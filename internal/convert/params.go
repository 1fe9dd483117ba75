package convert

import (
	"fmt"
	"slices"
	"strings"

	"github.com/book-expert/voicebatch/internal/core"
)

// Defaults for optional conversion parameters.
const (
	DefaultF0Method     = "harvest"
	DefaultIndexRate    = 0.66
	DefaultFilterRadius = 3
	DefaultResampleSR   = 0
	DefaultRMSMixRate   = 1.0
	DefaultProtect      = 0.33
)

// F0Methods lists the supported pitch-extraction algorithms.
var F0Methods = []string{"pm", "harvest", "crepe", "rmvpe"}

// DefaultParams returns a parameter bundle with every optional value at its default.
func DefaultParams() core.ConversionParams {
	return core.ConversionParams{
		F0Method:     DefaultF0Method,
		IndexRate:    DefaultIndexRate,
		FilterRadius: DefaultFilterRadius,
		ResampleSR:   DefaultResampleSR,
		RMSMixRate:   DefaultRMSMixRate,
		Protect:      DefaultProtect,
	}
}

// validate checks everything that can be checked without touching the
// filesystem. The model name is checked first.
func validate(params core.ConversionParams) error {
	if strings.TrimSpace(params.ModelName) == "" {
		return fmt.Errorf("%w: %w", core.ErrValidation, ErrModelNameRequired)
	}

	if strings.TrimSpace(params.InputPath) == "" {
		return fmt.Errorf("%w: %w", core.ErrValidation, ErrInputRequired)
	}

	if strings.TrimSpace(params.OutputPath) == "" {
		return fmt.Errorf("%w: %w", core.ErrValidation, ErrOutputRequired)
	}

	if !slices.Contains(F0Methods, params.F0Method) {
		return fmt.Errorf("%w: %w %q (want one of %s)",
			core.ErrValidation, ErrUnknownF0Method, params.F0Method, strings.Join(F0Methods, ", "))
	}

	if params.IndexRate < 0 || params.IndexRate > 1 {
		return fmt.Errorf("%w: index_rate %v outside [0, 1]", core.ErrValidation, params.IndexRate)
	}

	if params.RMSMixRate < 0 || params.RMSMixRate > 1 {
		return fmt.Errorf("%w: rms_mix_rate %v outside [0, 1]", core.ErrValidation, params.RMSMixRate)
	}

	if params.Protect < 0 || params.Protect > 0.5 {
		return fmt.Errorf("%w: protect %v outside [0, 0.5]", core.ErrValidation, params.Protect)
	}

	if params.FilterRadius < 0 || params.ResampleSR < 0 {
		return fmt.Errorf("%w: filter_radius and resample_sr must be non-negative", core.ErrValidation)
	}

	return nil
}

// fields returns the parameters in a stable order for logging.
func fields(params core.ConversionParams) [][2]string {
	return [][2]string{
		{"f0up_key", fmt.Sprint(params.F0UpKey)},
		{"input_path", params.InputPath},
		{"index_path", params.IndexPath},
		{"f0method", params.F0Method},
		{"opt_path", params.OutputPath},
		{"model_name", params.ModelName},
		{"index_rate", fmt.Sprint(params.IndexRate)},
		{"device", params.Device},
		{"is_half", fmt.Sprint(params.IsHalf)},
		{"filter_radius", fmt.Sprint(params.FilterRadius)},
		{"resample_sr", fmt.Sprint(params.ResampleSR)},
		{"rms_mix_rate", fmt.Sprint(params.RMSMixRate)},
		{"protect", fmt.Sprint(params.Protect)},
	}
}
