package core

import (
	"context"
	"errors"
)

// Error taxonomy shared by the batch and single-invocation paths.
var (
	// ErrValidation indicates a malformed or missing request shape.
	ErrValidation = errors.New("validation error")
	// ErrNotFound indicates that a referenced file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrModelInvocation indicates that the underlying model failed.
	ErrModelInvocation = errors.New("model invocation error")
	// ErrArgument indicates a command-line arity or shape violation.
	ErrArgument = errors.New("argument error")
	// ErrSetup indicates that batch setup (model acquisition) failed.
	ErrSetup = errors.New("setup error")
)

// Kind is the machine-readable classification of an error.
type Kind string

// Error kinds.
const (
	KindNone            Kind = ""
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindModelInvocation Kind = "model_invocation"
	KindArgument        Kind = "argument"
	KindSetup           Kind = "setup"
	KindTimeout         Kind = "timeout"
)

// Classify maps err onto the taxonomy. Unclassified errors are model invocation
// errors, since anything else escaping a model call is the model's failure.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrArgument):
		return KindArgument
	case errors.Is(err, ErrSetup):
		return KindSetup
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindModelInvocation
	}
}
