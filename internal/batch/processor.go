// Package batch runs independent work items through one shared model handle,
// recording exactly one outcome per item without letting a failure stop the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/google/uuid"
)

// Handle is the model resource acquired once per batch.
type Handle[W, T any] interface {
	Invoke(ctx context.Context, item W) (T, error)
	Release() error
}

// Acquirer constructs (or leases) the Handle for one batch.
type Acquirer[W, T any] func(ctx context.Context) (Handle[W, T], error)

// Validator checks one item and returns the normalized form passed to Invoke.
type Validator[W any] func(item W) (W, error)

// Observer receives per-item progress. Calls happen on the batch goroutine.
type Observer interface {
	OnItemDone(index, total int, item any, failure *Failure, elapsed time.Duration)
}

type batchIDKey struct{}

// IDFromContext returns the ID of the batch whose item is being invoked.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(batchIDKey{}).(string)

	return id, ok
}

// Settings tune a Processor.
type Settings struct {
	// ItemTimeout bounds each Invoke call; zero disables the deadline.
	ItemTimeout time.Duration
	Observer    Observer
}

// Processor executes batches strictly sequentially, in input order.
type Processor[W, T any] struct {
	validate Validator[W]
	acquire  Acquirer[W, T]
	settings Settings
	log      *logger.Logger
}

// New creates a Processor. A nil validate passes items through unchanged.
func New[W, T any](validate Validator[W], acquire Acquirer[W, T], log *logger.Logger, settings Settings) *Processor[W, T] {
	if validate == nil {
		validate = func(item W) (W, error) { return item, nil }
	}

	return &Processor[W, T]{
		validate: validate,
		acquire:  acquire,
		settings: settings,
		log:      log,
	}
}

// Run processes items and returns one entry per item. The only errors returned
// are batch-level *Error values, in which case no item was attempted.
func (p *Processor[W, T]) Run(ctx context.Context, items []W) (*Result[W, T], error) {
	if len(items) == 0 {
		return nil, ValidationError(ErrNoItems)
	}

	batchID := uuid.NewString()
	ctx = context.WithValue(ctx, batchIDKey{}, batchID)

	handle, err := p.acquire(ctx)
	if err != nil {
		p.log.Error("Batch %s: failed to acquire model: %v", batchID, err)

		return nil, SetupError(err)
	}

	defer func() {
		releaseErr := handle.Release()
		if releaseErr != nil {
			p.log.Warn("Batch %s: failed to release model: %v", batchID, releaseErr)
		}
	}()

	p.log.Info("Batch %s: processing %d items", batchID, len(items))

	result := &Result[W, T]{
		ID:      batchID,
		Entries: make([]Entry[W, T], 0, len(items)),
	}

	for index, item := range items {
		started := time.Now()
		outcome := p.processItem(ctx, handle, item)

		if outcome.Failure != nil {
			p.log.Error("Batch %s: item %d (%v) failed: %s", batchID, index, item, outcome.Failure.Message)
		}

		result.Entries = append(result.Entries, Entry[W, T]{Outcome: outcome, Item: item})

		if p.settings.Observer != nil {
			p.settings.Observer.OnItemDone(index, len(items), item, outcome.Failure, time.Since(started))
		}
	}

	p.log.Info("Batch %s: %d succeeded, %d failed", batchID, result.Succeeded(), result.Failed())

	return result, nil
}

// processItem is the isolation boundary: nothing raised while handling one item
// escapes it.
func (p *Processor[W, T]) processItem(ctx context.Context, handle Handle[W, T], item W) (outcome Outcome[T]) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			outcome = Fail[T](fmt.Errorf("%w: panic: %v", core.ErrModelInvocation, recovered))
		}
	}()

	normalized, err := p.validate(item)
	if err != nil {
		return Fail[T](err)
	}

	itemCtx, cancel := p.itemContext(ctx)
	defer cancel()

	value, err := handle.Invoke(itemCtx, normalized)
	if err != nil {
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", p.settings.ItemTimeout, err)
		}

		return Fail[T](err)
	}

	return Success(value)
}

func (p *Processor[W, T]) itemContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.settings.ItemTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, p.settings.ItemTimeout)
}
