package gate_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/data/audio"

func newTestGate(t *testing.T, files ...string) (*gate.Gate, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for _, name := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(testRoot, name), []byte("RIFF"), 0o600))
	}

	return gate.New(fs, testRoot), fs
}

func TestResolve_ExistingFile(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, "a/valid.wav")

	resolved, err := g.Resolve("a/valid.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(testRoot, "a", "valid.wav"), resolved)
}

func TestResolve_MissingFileCarriesResolvedPath(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t)

	_, err := g.Resolve("missing.wav")
	require.Error(t, err)
	require.ErrorIs(t, err, core.ErrNotFound)

	var notFound *gate.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing.wav", notFound.Ref)
	assert.Equal(t, filepath.Join(testRoot, "missing.wav"), notFound.Path)
	assert.Equal(t, "File not found: "+filepath.Join(testRoot, "missing.wav"), err.Error())
}

func TestResolve_RejectsInvalidReferences(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, "dir/file.wav")

	tests := []struct {
		name   string
		ref    string
		target error
	}{
		{name: "empty", ref: "", target: gate.ErrEmptyReference},
		{name: "blank", ref: "   ", target: gate.ErrEmptyReference},
		{name: "parent escape", ref: "../etc/passwd", target: gate.ErrEscapesRoot},
		{name: "nested escape", ref: "dir/../../secret.wav", target: gate.ErrEscapesRoot},
		{name: "directory", ref: "dir", target: gate.ErrNotRegularFile},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := g.Resolve(testCase.ref)
			require.ErrorIs(t, err, testCase.target)
			require.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestResolve_AbsoluteReferenceIsReRooted(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, "abs.wav")

	resolved, err := g.Resolve("/abs.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(testRoot, "abs.wav"), resolved)
}

func TestResolve_IsIdempotent(t *testing.T) {
	t.Parallel()

	g, fs := newTestGate(t, "same.wav")

	for range 3 {
		assert.True(t, g.Exists("same.wav"))
		assert.False(t, g.Exists("other.wav"))
	}

	require.NoError(t, afero.WriteFile(fs, filepath.Join(testRoot, "other.wav"), []byte("RIFF"), 0o600))
	assert.True(t, g.Exists("other.wav"), "verdict follows the filesystem, not a cache")
}

func TestJoin_RelativeRoot(t *testing.T) {
	t.Parallel()

	g := gate.New(afero.NewMemMapFs(), "..")

	resolved, err := g.Join("public/voice/A-0.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "public", "voice", "A-0.wav"), resolved)
	assert.Equal(t, "..", g.Root())
}
