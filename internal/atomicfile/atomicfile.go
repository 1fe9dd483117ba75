// Package atomicfile replaces files through a temporary sibling and a rename,
// so readers never observe a partially written file.
package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const dirPermissions = 0o750

// Write stores data at path on fs, creating parent directories as needed.
func Write(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	err := fs.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	tempPath := tempFile.Name()

	_, err = tempFile.Write(data)
	err = errors.Join(err, tempFile.Close())

	if err == nil {
		err = fs.Chmod(tempPath, perm)
	}

	if err == nil {
		err = fs.Rename(tempPath, path)
	}

	if err != nil {
		removeErr := fs.Remove(tempPath)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			err = errors.Join(err, removeErr)
		}

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
