// Package convert runs exactly one voice conversion. Every failure is fatal:
// a precondition failure aborts before any model work, and a model failure
// ends the run.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/atomicfile"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/spf13/afero"
)

// State is a step of a conversion run.
type State string

// Conversion states.
const (
	StateStart           State = "start"
	StateParametersValid State = "parameters_valid"
	StateModelResolved   State = "model_resolved"
	StateReady           State = "ready"
	StateComplete        State = "complete"
	StateFatalAbort      State = "fatal_abort"
	StateFatal           State = "fatal"
)

// ExitFatal is the process exit code of every fatal outcome.
const ExitFatal = 1

const outputPermissions = 0o644

var (
	// ErrModelNameRequired indicates that no model name was given.
	ErrModelNameRequired = errors.New("model_name is required. Please provide --model_name parameter")
	// ErrInputRequired indicates that no input path was given.
	ErrInputRequired = errors.New("input_path is required")
	// ErrOutputRequired indicates that no output path was given.
	ErrOutputRequired = errors.New("opt_path is required")
	// ErrUnknownF0Method indicates an unsupported pitch-extraction algorithm.
	ErrUnknownF0Method = errors.New("unknown f0method")
)

// FatalError ends a conversion run. Failed is the state the run was in when it
// failed; State is the terminal state.
type FatalError struct {
	State    State
	Failed   State
	ExitCode int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("conversion %s in %s: %v", e.State, e.Failed, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Report describes a completed conversion.
type Report struct {
	ModelPath  string
	OutputPath string
	Bytes      int
	States     []State
}

// Processor converts one input file per Run.
type Processor struct {
	fs      afero.Fs
	weights *gate.Gate
	loader  core.ConverterLoader
	log     *logger.Logger
}

// New creates a Processor resolving model names under weightRoot on fs.
func New(fs afero.Fs, weightRoot string, loader core.ConverterLoader, log *logger.Logger) *Processor {
	return &Processor{
		fs:      fs,
		weights: gate.New(fs, weightRoot),
		loader:  loader,
		log:     log,
	}
}

type run struct {
	states []State
}

func (r *run) enter(state State) {
	r.states = append(r.states, state)
}

func (r *run) current() State {
	return r.states[len(r.states)-1]
}

func (r *run) abort(err error) *FatalError {
	failed := r.current()
	r.enter(StateFatalAbort)

	return &FatalError{State: StateFatalAbort, Failed: failed, ExitCode: ExitFatal, Err: err}
}

func (r *run) fatal(err error) *FatalError {
	failed := r.current()
	r.enter(StateFatal)

	return &FatalError{State: StateFatal, Failed: failed, ExitCode: ExitFatal, Err: err}
}

// Run executes the conversion. Any returned error is a *FatalError.
func (p *Processor) Run(ctx context.Context, params core.ConversionParams) (*Report, error) {
	current := &run{}
	current.enter(StateStart)

	p.log.Info("Received arguments:")

	for _, field := range fields(params) {
		p.log.Info("%s: %s", field[0], field[1])
	}

	err := validate(params)
	if err != nil {
		p.log.Error("Error: %v", err)

		return nil, current.abort(err)
	}

	current.enter(StateParametersValid)

	modelPath, err := p.resolveModel(params.ModelName)
	if err != nil {
		return nil, current.abort(err)
	}

	err = p.checkInput(params.InputPath)
	if err != nil {
		return nil, current.abort(err)
	}

	current.enter(StateModelResolved)

	converter, err := p.loader.Load(ctx, modelPath, params.Device, params.IsHalf)
	if err != nil {
		p.log.Error("Failed to load model %s: %v", modelPath, err)

		return nil, current.fatal(fmt.Errorf("%w: %w", core.ErrModelInvocation, err))
	}

	defer func() {
		closeErr := converter.Close()
		if closeErr != nil {
			p.log.Warn("Failed to close model %s: %v", modelPath, closeErr)
		}
	}()

	current.enter(StateReady)

	audio, err := convertOnce(ctx, converter, params)
	if err != nil {
		p.log.Error("Conversion of %s failed: %v", params.InputPath, err)

		return nil, current.fatal(err)
	}

	err = p.writeOutput(params.OutputPath, audio)
	if err != nil {
		p.log.Error("Failed to write %s: %v", params.OutputPath, err)

		return nil, current.fatal(err)
	}

	current.enter(StateComplete)
	p.log.Info("Wrote %s (%d bytes)", params.OutputPath, len(audio))

	return &Report{
		ModelPath:  modelPath,
		OutputPath: params.OutputPath,
		Bytes:      len(audio),
		States:     current.states,
	}, nil
}

func (p *Processor) resolveModel(name string) (string, error) {
	candidate, err := p.weights.Join(name)
	if err != nil {
		p.log.Error("Error: %v", err)

		return "", err
	}

	p.log.Info("Looking for model at: %s", candidate)

	modelPath, err := p.weights.Resolve(name)
	if err != nil {
		p.log.Error("Error: Model file not found at %s: %v", candidate, err)
		p.log.Info("weight_root: %s", p.weights.Root())

		return "", err
	}

	return modelPath, nil
}

func (p *Processor) checkInput(inputPath string) error {
	info, err := p.fs.Stat(inputPath)
	if errors.Is(err, os.ErrNotExist) {
		p.log.Error("Error: Input file not found at %s", inputPath)

		return &gate.NotFoundError{Ref: inputPath, Path: inputPath}
	}

	if err != nil {
		return fmt.Errorf("%w: cannot access input %s: %w", core.ErrValidation, inputPath, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %w: %s", core.ErrValidation, gate.ErrNotRegularFile, inputPath)
	}

	return nil
}

// convertOnce turns a panic inside the model into an error.
func convertOnce(ctx context.Context, converter core.VoiceConverter, params core.ConversionParams) (audio []byte, err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("%w: panic: %v", core.ErrModelInvocation, recovered)
		}
	}()

	return converter.Convert(ctx, params)
}

func (p *Processor) writeOutput(outputPath string, audio []byte) error {
	return atomicfile.Write(p.fs, outputPath, audio, outputPermissions)
}
