package batch

import (
	"errors"
	"fmt"

	"github.com/book-expert/voicebatch/internal/core"
)

// ErrNoItems indicates that a batch was submitted without work items.
var ErrNoItems = errors.New("no work items supplied")

// Error is a batch-level failure: no per-item attempts were made.
type Error struct {
	Kind core.Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("batch %s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError wraps err as a batch-level validation failure.
func ValidationError(err error) *Error {
	return &Error{Kind: core.KindValidation, Err: fmt.Errorf("%w: %w", core.ErrValidation, err)}
}

// SetupError wraps err as a batch-level setup failure.
func SetupError(err error) *Error {
	return &Error{Kind: core.KindSetup, Err: fmt.Errorf("%w: %w", core.ErrSetup, err)}
}

// AsError extracts a batch-level *Error from err.
func AsError(err error) (*Error, bool) {
	var batchErr *Error
	if errors.As(err, &batchErr) {
		return batchErr, true
	}

	return nil, false
}
