package cli

import (
	"errors"

	"github.com/book-expert/voicebatch/internal/convert"
	"github.com/book-expert/voicebatch/internal/core"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// UsageError is an arity or shape violation; its message is the usage line.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return e.Usage
}

// Is makes a UsageError match core.ErrArgument.
func (e *UsageError) Is(target error) bool {
	return target == core.ErrArgument
}

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var fatal *convert.FatalError
	if errors.As(err, &fatal) {
		return fatal.ExitCode
	}

	return ExitFailure
}
