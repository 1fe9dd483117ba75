package atomicfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voicebatch/internal/atomicfile"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRenameRefused = errors.New("rename refused")

type failingRenameFs struct {
	afero.Fs
}

func (f failingRenameFs) Rename(string, string) error {
	return errRenameRefused
}

func TestWrite_CreatesAndReplaces(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	path := "/out/voice/NARRATOR-0.wav"

	require.NoError(t, atomicfile.Write(fs, path, []byte("first"), 0o644))
	require.NoError(t, atomicfile.Write(fs, path, []byte("second"), 0o600))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := afero.ReadDir(fs, filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWrite_OnDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "clip.wav")

	require.NoError(t, atomicfile.Write(afero.NewOsFs(), path, []byte("RIFF"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestWrite_FailureLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/out/clip.wav", []byte("old"), 0o644))

	err := atomicfile.Write(failingRenameFs{Fs: base}, "/out/clip.wav", []byte("new"), 0o644)
	require.ErrorIs(t, err, errRenameRefused)

	data, err := afero.ReadFile(base, "/out/clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "existing file is untouched")

	entries, err := afero.ReadDir(base, "/out")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
