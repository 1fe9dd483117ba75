package whisper

import (
	"context"
	"strings"

	"github.com/book-expert/voicebatch/internal/core"
)

// Loader binds a Client to a model name.
type Loader struct {
	client *Client
}

// NewLoader creates a Loader issuing requests through client.
func NewLoader(client *Client) *Loader {
	return &Loader{client: client}
}

// Load returns the Transcriber for model once the backend confirms it serves it.
func (l *Loader) Load(ctx context.Context, model string) (core.Transcriber, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ErrEmptyModel
	}

	err := l.client.CheckModel(ctx, model)
	if err != nil {
		return nil, err
	}

	return &Model{client: l.client, name: model}, nil
}

// Model is a remote model. Closing it releases nothing.
type Model struct {
	client *Client
	name   string
}

// Transcribe implements core.Transcriber.
func (m *Model) Transcribe(ctx context.Context, audioPath string, opts core.TranscribeOptions) (*core.Transcript, error) {
	return m.client.TranscribeFile(ctx, audioPath, m.name, opts.Language)
}

// Close implements io.Closer.
func (m *Model) Close() error {
	return nil
}
