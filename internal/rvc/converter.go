// Package rvc runs voice conversion through an external inference script.
package rvc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/core"
)

// ErrEmptyBinary indicates a Loader without an interpreter or binary.
var ErrEmptyBinary = errors.New("conversion binary is not configured")

// Loader prepares converters that shell out to Binary Script.
type Loader struct {
	Binary string
	Script string
	log    *logger.Logger
}

// NewLoader creates a Loader. Script may be empty when Binary is the inference
// program itself.
func NewLoader(binary, script string, log *logger.Logger) *Loader {
	return &Loader{Binary: binary, Script: script, log: log}
}

// Load checks that the binary can be found and binds the weights and device.
func (l *Loader) Load(_ context.Context, modelPath, device string, isHalf bool) (core.VoiceConverter, error) {
	if l.Binary == "" {
		return nil, ErrEmptyBinary
	}

	binary, err := exec.LookPath(l.Binary)
	if err != nil {
		return nil, fmt.Errorf("conversion binary %q not found: %w", l.Binary, err)
	}

	l.log.Info("Bound voice model %s (device=%q, half=%t)", modelPath, device, isHalf)

	return &Converter{
		binary:    binary,
		script:    l.Script,
		modelPath: modelPath,
		device:    device,
		isHalf:    isHalf,
		log:       l.log,
	}, nil
}

// Converter is a bound voice model. Each Convert is one process run.
type Converter struct {
	binary    string
	script    string
	modelPath string
	device    string
	isHalf    bool
	log       *logger.Logger
}

// Convert runs the inference script and returns the converted WAV bytes. The
// script writes to a temporary file; params.OutputPath is left untouched.
func (c *Converter) Convert(ctx context.Context, params core.ConversionParams) ([]byte, error) {
	tempFile, err := os.CreateTemp("", "rvc-output-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for conversion output: %w", err)
	}

	tempPath := tempFile.Name()

	closeErr := tempFile.Close()
	if closeErr != nil {
		c.log.Warn("Failed to close temp file '%s': %v", tempPath, closeErr)
	}

	defer func() {
		removeErr := os.Remove(tempPath)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			c.log.Warn("Failed to remove temp file '%s': %v", tempPath, removeErr)
		}
	}()

	args := c.args(params, tempPath)

	// #nosec G204 -- binary is resolved by LookPath and parameters are validated before conversion
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Env = append(os.Environ(), "weight_root="+filepath.Dir(c.modelPath))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: conversion process failed: %w - output: %s", core.ErrModelInvocation, err, string(output))
	}

	audioData, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: conversion produced no audio", core.ErrModelInvocation)
	}

	return audioData, nil
}

func (c *Converter) args(params core.ConversionParams, outputPath string) []string {
	var args []string

	if c.script != "" {
		args = append(args, c.script)
	}

	args = append(args,
		"--f0up_key", strconv.Itoa(params.F0UpKey),
		"--input_path", params.InputPath,
		"--f0method", params.F0Method,
		"--opt_path", outputPath,
		"--model_name", filepath.Base(c.modelPath),
		"--index_rate", strconv.FormatFloat(params.IndexRate, 'f', -1, 64),
		"--filter_radius", strconv.Itoa(params.FilterRadius),
		"--resample_sr", strconv.Itoa(params.ResampleSR),
		"--rms_mix_rate", strconv.FormatFloat(params.RMSMixRate, 'f', -1, 64),
		"--protect", strconv.FormatFloat(params.Protect, 'f', -1, 64),
	)

	if params.IndexPath != "" {
		args = append(args, "--index_path", params.IndexPath)
	}

	if c.device != "" {
		args = append(args, "--device", c.device)
	}

	if c.isHalf {
		args = append(args, "--is_half", "True")
	}

	return args
}

// Close implements io.Closer. No process outlives Convert.
func (c *Converter) Close() error {
	return nil
}
