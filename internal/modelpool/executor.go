// Package modelpool gives each loaded model a single-writer lane and keeps a
// bounded cache of lanes keyed by model name.
package modelpool

import (
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/panjf2000/ants/v2"
)

// ErrExecutorClosed indicates a call submitted after Release.
var ErrExecutorClosed = errors.New("model executor is closed")

// Executor runs model calls on a bounded goroutine pool.
type Executor struct {
	pool *ants.Pool
	log  *logger.Logger
}

// NewExecutor creates an Executor running at most size calls at once.
func NewExecutor(size int, log *logger.Logger) (*Executor, error) {
	if size <= 0 {
		size = 1
	}

	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(recovered any) {
		log.Error("Model executor task panicked: %v", recovered)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create model executor: %w", err)
	}

	return &Executor{pool: pool, log: log}, nil
}

func (e *Executor) submit(task func()) error {
	err := e.pool.Submit(task)
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrExecutorClosed
	}

	if err != nil {
		return fmt.Errorf("failed to submit model call: %w", err)
	}

	return nil
}

// Running returns the number of calls currently executing.
func (e *Executor) Running() int {
	return e.pool.Running()
}

// Release stops accepting calls.
func (e *Executor) Release() {
	e.pool.Release()
}
