// Package transcription transcribes batches of audio files with one shared model
// per batch, reporting a transcript or an error for every file.
package transcription

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/book-expert/voicebatch/internal/modelpool"
)

// Result is the ordered per-file outcome of one batch.
type Result = batch.Result[string, *core.Transcript]

// Settings select the model and per-call behavior.
type Settings struct {
	Model       string
	Language    string
	ItemTimeout time.Duration
}

// Service runs transcription batches.
type Service struct {
	gate     *gate.Gate
	pool     *modelpool.Pool[core.Transcriber]
	settings Settings
	log      *logger.Logger
}

// NewPool builds the model pool backing a Service from a TranscriberLoader.
func NewPool(
	loader core.TranscriberLoader,
	cacheSize int,
	exec *modelpool.Executor,
	log *logger.Logger,
) (*modelpool.Pool[core.Transcriber], error) {
	load := func(ctx context.Context, name string) (core.Transcriber, error) {
		return loader.Load(ctx, name)
	}

	pool, err := modelpool.New(load, cacheSize, exec, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription model pool: %w", err)
	}

	return pool, nil
}

// New creates a Service resolving audio references through audioGate.
func New(audioGate *gate.Gate, pool *modelpool.Pool[core.Transcriber], settings Settings, log *logger.Logger) *Service {
	return &Service{
		gate:     audioGate,
		pool:     pool,
		settings: settings,
		log:      log,
	}
}

// WithGate returns a Service sharing the model pool but resolving audio
// references through audioGate.
func (s *Service) WithGate(audioGate *gate.Gate) *Service {
	clone := *s
	clone.gate = audioGate

	return &clone
}

// Model returns the model name used for every batch.
func (s *Service) Model() string {
	return s.settings.Model
}

// Pool exposes the model pool for explicit invalidation.
func (s *Service) Pool() *modelpool.Pool[core.Transcriber] {
	return s.pool
}

// Transcribe processes audios in order. The returned error is always a
// *batch.Error; per-file failures are recorded in the Result.
func (s *Service) Transcribe(ctx context.Context, audios []string, observer batch.Observer) (*Result, error) {
	processor := batch.New(
		s.gate.Resolve,
		s.acquire,
		s.log,
		batch.Settings{ItemTimeout: s.settings.ItemTimeout, Observer: observer},
	)

	return processor.Run(ctx, audios)
}

func (s *Service) acquire(ctx context.Context) (batch.Handle[string, *core.Transcript], error) {
	lane, release, err := s.pool.Lease(ctx, s.settings.Model)
	if err != nil {
		return nil, err
	}

	return &handle{
		lane:    lane,
		release: release,
		opts:    core.TranscribeOptions{Language: s.settings.Language},
	}, nil
}

type handle struct {
	lane    *modelpool.Lane[core.Transcriber]
	release func() error
	opts    core.TranscribeOptions
}

func (h *handle) Invoke(ctx context.Context, audioPath string) (*core.Transcript, error) {
	return modelpool.Do(ctx, h.lane, func(ctx context.Context, model core.Transcriber) (*core.Transcript, error) {
		return model.Transcribe(ctx, audioPath, h.opts)
	})
}

func (h *handle) Release() error {
	return h.release()
}
