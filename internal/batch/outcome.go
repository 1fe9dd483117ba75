package batch

import (
	"encoding/json"
	"fmt"

	"github.com/book-expert/voicebatch/internal/core"
)

// Failure is the recorded error of one work item.
type Failure struct {
	Kind    core.Kind
	Message string
}

// Outcome is either a success payload or a Failure.
type Outcome[T any] struct {
	Value   T
	Failure *Failure
}

// Success records a successful payload.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{Value: value}
}

// Fail records err as the item's outcome.
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Failure: &Failure{Kind: core.Classify(err), Message: err.Error()}}
}

// OK reports whether the outcome is a success.
func (o Outcome[T]) OK() bool {
	return o.Failure == nil
}

// MarshalJSON encodes a success as its payload and a failure as {"error": message}.
func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Failure != nil {
		return json.Marshal(map[string]string{"error": o.Failure.Message})
	}

	return json.Marshal(o.Value)
}

// Entry pairs an outcome with the item exactly as the caller supplied it.
type Entry[W, T any] struct {
	Outcome Outcome[T]
	Item    W
}

// MarshalJSON encodes the entry as a two-element array [outcome, item].
func (e Entry[W, T]) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal([2]any{e.Outcome, e.Item})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch entry: %w", err)
	}

	return data, nil
}

// Result holds one entry per input item, in input order.
type Result[W, T any] struct {
	ID      string
	Entries []Entry[W, T]
}

// Len returns the number of entries.
func (r Result[W, T]) Len() int {
	return len(r.Entries)
}

// Failed returns the number of failed entries.
func (r Result[W, T]) Failed() int {
	failed := 0

	for _, entry := range r.Entries {
		if !entry.Outcome.OK() {
			failed++
		}
	}

	return failed
}

// Succeeded returns the number of successful entries.
func (r Result[W, T]) Succeeded() int {
	return r.Len() - r.Failed()
}

// MarshalJSON encodes the result as the bare ordered entry array.
func (r Result[W, T]) MarshalJSON() ([]byte, error) {
	entries := r.Entries
	if entries == nil {
		entries = []Entry[W, T]{}
	}

	return json.Marshal(entries)
}
