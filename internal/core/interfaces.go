// Package core defines the shared interfaces and domain types for the voicebatch service.
package core

import (
	"context"
	"io"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// TranscribeOptions holds the per-call options passed to a Transcriber.
type TranscribeOptions struct {
	Language string
}

// Transcriber is a loaded speech-to-text model. Implementations are not assumed
// to be safe for concurrent use.
type Transcriber interface {
	io.Closer
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*Transcript, error)
}

// TranscriberLoader constructs a Transcriber for a named model.
type TranscriberLoader interface {
	Load(ctx context.Context, model string) (Transcriber, error)
}

// SynthesisRequest describes one voice-cloning text-to-speech call.
type SynthesisRequest struct {
	Text           string
	SpeakerRefPath string
	Language       string
}

// Synthesizer turns text into WAV audio using a reference voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// ConversionParams is the full parameter bundle for one voice conversion.
type ConversionParams struct {
	F0UpKey      int
	InputPath    string
	IndexPath    string
	F0Method     string
	OutputPath   string
	ModelName    string
	IndexRate    float64
	Device       string
	IsHalf       bool
	FilterRadius int
	ResampleSR   int
	RMSMixRate   float64
	Protect      float64
}

// VoiceConverter is a loaded voice-conversion model bound to runtime parameters.
type VoiceConverter interface {
	io.Closer
	Convert(ctx context.Context, params ConversionParams) ([]byte, error)
}

// ConverterLoader loads the weights at modelPath and binds the device settings.
type ConverterLoader interface {
	Load(ctx context.Context, modelPath string, device string, isHalf bool) (VoiceConverter, error)
}
