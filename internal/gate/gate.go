// Package gate validates that referenced files exist under a configured root
// before any expensive model work is attempted.
package gate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/voicebatch/internal/core"
	"github.com/spf13/afero"
)

var (
	// ErrEmptyReference indicates that an empty path was supplied.
	ErrEmptyReference = errors.New("empty path reference")
	// ErrEscapesRoot indicates that a reference resolves outside the root.
	ErrEscapesRoot = errors.New("path escapes root")
	// ErrNotRegularFile indicates that the reference names a directory.
	ErrNotRegularFile = errors.New("not a regular file")
)

// NotFoundError reports a missing file together with the path that was tried.
type NotFoundError struct {
	Ref  string
	Path string
}

func (e *NotFoundError) Error() string {
	return "File not found: " + e.Path
}

// Is makes NotFoundError match core.ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == core.ErrNotFound
}

// Gate resolves caller-supplied references against a root directory.
// It keeps no state between calls.
type Gate struct {
	fs   afero.Fs
	root string
}

// New creates a Gate over fs rooted at root.
func New(fs afero.Fs, root string) *Gate {
	return &Gate{fs: fs, root: filepath.Clean(root)}
}

// NewOS creates a Gate over the real filesystem.
func NewOS(root string) *Gate {
	return New(afero.NewOsFs(), root)
}

// Root returns the cleaned root directory.
func (g *Gate) Root() string {
	return g.root
}

// Join resolves ref against the root without touching the filesystem.
// Absolute references are re-rooted rather than trusted.
func (g *Gate) Join(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: %w", core.ErrValidation, ErrEmptyReference)
	}

	resolved := filepath.Join(g.root, ref)

	rel, err := filepath.Rel(g.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrEscapesRoot, ref)
	}

	return resolved, nil
}

// Resolve returns the resolved path of ref if it names an existing regular file.
// A missing file yields a *NotFoundError.
func (g *Gate) Resolve(ref string) (string, error) {
	resolved, err := g.Join(ref)
	if err != nil {
		return "", err
	}

	info, err := g.fs.Stat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NotFoundError{Ref: ref, Path: resolved}
		}

		return "", fmt.Errorf("%w: cannot access %s: %w", core.ErrValidation, resolved, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrNotRegularFile, resolved)
	}

	return resolved, nil
}

// Exists reports whether ref resolves to an existing regular file.
func (g *Gate) Exists(ref string) bool {
	_, err := g.Resolve(ref)

	return err == nil
}
