package modelpool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/book-expert/voicebatch/internal/core"
)

// ErrLaneClosed is returned by Do once the lane's model has been closed.
var ErrLaneClosed = errors.New("model lane is closed")

// Lane serializes every call against one model instance. A call that outlives
// its caller's context keeps the lane until the model returns.
type Lane[M io.Closer] struct {
	name  string
	model M
	exec  *Executor
	token chan struct{}
	gone  chan struct{}

	mu      sync.Mutex
	refs    int
	retired bool
	closed  bool
}

func newLane[M io.Closer](name string, model M, exec *Executor) *Lane[M] {
	return &Lane[M]{
		name:  name,
		model: model,
		exec:  exec,
		token: make(chan struct{}, 1),
		gone:  make(chan struct{}),
	}
}

// Name returns the model name the lane was loaded for.
func (l *Lane[M]) Name() string {
	return l.name
}

type callResult[T any] struct {
	value T
	err   error
}

// Do runs fn against the lane's model. It waits for the lane, then for fn, and
// gives up waiting when ctx is done.
func Do[M io.Closer, T any](ctx context.Context, lane *Lane[M], fn func(context.Context, M) (T, error)) (T, error) {
	var zero T

	select {
	case lane.token <- struct{}{}:
	case <-lane.gone:
		return zero, fmt.Errorf("%w: %q", ErrLaneClosed, lane.name)
	case <-ctx.Done():
		return zero, fmt.Errorf("waiting for model %q: %w", lane.name, ctx.Err())
	}

	if lane.isClosed() {
		<-lane.token

		return zero, fmt.Errorf("%w: %q", ErrLaneClosed, lane.name)
	}

	done := make(chan callResult[T], 1)

	err := lane.exec.submit(func() {
		defer func() { <-lane.token }()

		done <- invoke(ctx, lane.model, fn)
	})
	if err != nil {
		<-lane.token

		return zero, err
	}

	select {
	case result := <-done:
		return result.value, result.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func invoke[M io.Closer, T any](ctx context.Context, model M, fn func(context.Context, M) (T, error)) (result callResult[T]) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			result = callResult[T]{err: fmt.Errorf("%w: panic: %v", core.ErrModelInvocation, recovered)}
		}
	}()

	value, err := fn(ctx, model)

	return callResult[T]{value: value, err: err}
}

func (l *Lane[M]) acquire() {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
}

// tryAcquire leases the lane unless it has already been retired.
func (l *Lane[M]) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.retired {
		return false
	}

	l.refs++

	return true
}

func (l *Lane[M]) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}

// markClosed must be called with mu held.
func (l *Lane[M]) markClosed() {
	l.closed = true
	close(l.gone)
}

// release drops one lease and closes the model once a retired lane is idle.
func (l *Lane[M]) release() error {
	l.mu.Lock()
	l.refs--
	shouldClose := l.retired && l.refs == 0 && !l.closed

	if shouldClose {
		l.markClosed()
	}
	l.mu.Unlock()

	if !shouldClose {
		return nil
	}

	return l.closeModel()
}

// retire marks the lane as no longer reachable from the cache.
func (l *Lane[M]) retire() error {
	l.mu.Lock()
	l.retired = true
	shouldClose := l.refs == 0 && !l.closed

	if shouldClose {
		l.markClosed()
	}
	l.mu.Unlock()

	if !shouldClose {
		return nil
	}

	return l.closeModel()
}

// closeModel closes immediately when the lane is idle, otherwise after the
// in-flight call returns.
func (l *Lane[M]) closeModel() error {
	select {
	case l.token <- struct{}{}:
		err := l.model.Close()
		if err != nil {
			return fmt.Errorf("failed to close model %q: %w", l.name, err)
		}

		return nil
	default:
	}

	go func() {
		l.token <- struct{}{}

		err := l.model.Close()
		if err != nil {
			l.exec.log.Warn("Failed to close model %q after in-flight call: %v", l.name, err)
		}
	}()

	return nil
}
