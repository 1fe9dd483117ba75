package transcription_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/book-expert/voicebatch/internal/modelpool"
	"github.com/book-expert/voicebatch/internal/transcription"
	"github.com/book-expert/voicebatch/internal/whisper"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const audioRoot = "/srv/audio"

var errCorruptAudio = errors.New("corrupt audio stream")

type fakeTranscriber struct {
	language string
	closed   bool
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string, opts core.TranscribeOptions) (*core.Transcript, error) {
	f.language = opts.Language

	if filepath.Base(audioPath) == "corrupt.wav" {
		return nil, errCorruptAudio
	}

	return &core.Transcript{
		Text:     "hello from " + filepath.Base(audioPath),
		Language: opts.Language,
		Segments: []core.Segment{{Start: 0, End: 1, Text: "hello"}},
	}, nil
}

func (f *fakeTranscriber) Close() error {
	f.closed = true

	return nil
}

type fakeLoader struct {
	mu     sync.Mutex
	loads  int
	models []*fakeTranscriber
	err    error
}

func (l *fakeLoader) Load(_ context.Context, _ string) (core.Transcriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}

	l.loads++
	model := &fakeTranscriber{}
	l.models = append(l.models, model)

	return model, nil
}

func newService(t *testing.T, loader *fakeLoader, cacheSize int) *transcription.Service {
	t.Helper()

	log, err := logger.New(t.TempDir(), "transcription-test.log")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	for _, name := range []string{"a/valid.wav", "b.wav", "corrupt.wav"} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(audioRoot, name), []byte("RIFF"), 0o644))
	}

	exec, err := modelpool.NewExecutor(1, log)
	require.NoError(t, err)
	t.Cleanup(exec.Release)

	pool, err := transcription.NewPool(loader, cacheSize, exec, log)
	require.NoError(t, err)

	settings := transcription.Settings{Model: "tiny", Language: "en"}

	return transcription.New(gate.New(fs, audioRoot), pool, settings, log)
}

func TestTranscribe_MixedBatch(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{}
	service := newService(t, loader, 0)

	audios := []string{"a/valid.wav", "missing.wav", "corrupt.wav", "../../etc/passwd", "b.wav"}

	result, err := service.Transcribe(context.Background(), audios, nil)
	require.NoError(t, err)
	require.Equal(t, len(audios), result.Len())

	assert.Equal(t, "hello from valid.wav", result.Entries[0].Outcome.Value.Text)
	assert.Equal(t, "File not found: /srv/audio/missing.wav", result.Entries[1].Outcome.Failure.Message)
	assert.Equal(t, core.KindNotFound, result.Entries[1].Outcome.Failure.Kind)
	assert.Equal(t, errCorruptAudio.Error(), result.Entries[2].Outcome.Failure.Message)
	assert.Equal(t, core.KindValidation, result.Entries[3].Outcome.Failure.Kind)
	assert.True(t, result.Entries[4].Outcome.OK())

	for i, entry := range result.Entries {
		assert.Equal(t, audios[i], entry.Item)
	}

	assert.Equal(t, 1, loader.loads, "one model per batch")
	assert.True(t, loader.models[0].closed, "uncached model is closed after the batch")
	assert.Equal(t, "en", loader.models[0].language)
}

func TestTranscribe_ResponseShape(t *testing.T) {
	t.Parallel()

	service := newService(t, &fakeLoader{}, 0)

	result, err := service.Transcribe(context.Background(), []string{"a/valid.wav", "missing.wav"}, nil)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded []([2]json.RawMessage)
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)

	var transcript core.Transcript
	require.NoError(t, json.Unmarshal(decoded[0][0], &transcript))
	assert.Equal(t, "hello from valid.wav", transcript.Text)
	assert.JSONEq(t, `"a/valid.wav"`, string(decoded[0][1]))
	assert.JSONEq(t, `{"error": "File not found: /srv/audio/missing.wav"}`, string(decoded[1][0]))
	assert.JSONEq(t, `"missing.wav"`, string(decoded[1][1]))
}

func TestTranscribe_BatchLevelFailures(t *testing.T) {
	t.Parallel()

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		loader := &fakeLoader{}
		service := newService(t, loader, 0)

		_, err := service.Transcribe(context.Background(), nil, nil)
		batchErr, ok := batch.AsError(err)
		require.True(t, ok)
		assert.Equal(t, core.KindValidation, batchErr.Kind)
		assert.Zero(t, loader.loads)
	})

	t.Run("model load failure", func(t *testing.T) {
		t.Parallel()

		errWeights := errors.New("weights not downloaded")
		service := newService(t, &fakeLoader{err: errWeights}, 0)

		_, err := service.Transcribe(context.Background(), []string{"a/valid.wav"}, nil)
		require.ErrorIs(t, err, errWeights)

		batchErr, ok := batch.AsError(err)
		require.True(t, ok)
		assert.Equal(t, core.KindSetup, batchErr.Kind)
	})
}

func TestTranscribe_UnavailableBackendIsSetupFailure(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}

		http.Error(w, "warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	log, err := logger.New(t.TempDir(), "transcription-test.log")
	require.NoError(t, err)

	exec, err := modelpool.NewExecutor(1, log)
	require.NoError(t, err)
	t.Cleanup(exec.Release)

	client := whisper.NewClient(server.URL+"/v1/audio/transcriptions", "", time.Second, log)
	pool, err := transcription.NewPool(whisper.NewLoader(client), 1, exec, log)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(audioRoot, "b.wav"), []byte("RIFF"), 0o644))

	service := transcription.New(gate.New(fs, audioRoot), pool, transcription.Settings{Model: "tiny"}, log)

	result, err := service.Transcribe(context.Background(), []string{"b.wav", "missing.wav"}, nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "status 503: warming up")

	batchErr, ok := batch.AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindSetup, batchErr.Kind)
	assert.Zero(t, posts.Load())
	assert.Empty(t, pool.Cached())
}

func TestTranscribe_CachedModelSharedAcrossBatches(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{}
	service := newService(t, loader, 1)

	for range 3 {
		_, err := service.Transcribe(context.Background(), []string{"b.wav"}, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, loader.loads)
	assert.False(t, loader.models[0].closed)
	assert.Equal(t, "tiny", service.Model())

	assert.True(t, service.Pool().Invalidate("tiny"))
	assert.True(t, loader.models[0].closed)
}

func TestWithGate_SharesModelPool(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{}
	service := newService(t, loader, 1)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/renders/voice/A-0.wav", []byte("RIFF"), 0o644))

	rendered := service.WithGate(gate.New(fs, "/renders"))

	result, err := rendered.Transcribe(context.Background(), []string{"voice/A-0.wav", "b.wav"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Entries[0].Outcome.OK())
	assert.Equal(t, core.KindNotFound, result.Entries[1].Outcome.Failure.Kind)

	_, err = service.Transcribe(context.Background(), []string{"b.wav"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads)
}
