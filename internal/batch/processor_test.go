package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockModel = errors.New("mock model exploded")

type payload struct {
	Text string `json:"text"`
}

// fakeHandle upper-cases its input and misbehaves for selected items.
type fakeHandle struct {
	failOn   map[string]error
	panicOn  map[string]bool
	blockOn  map[string]bool
	invoked  []string
	released int
}

func (h *fakeHandle) Invoke(ctx context.Context, item string) (payload, error) {
	h.invoked = append(h.invoked, item)

	batchID, ok := batch.IDFromContext(ctx)
	if !ok || batchID == "" {
		return payload{}, errors.New("batch id missing from context")
	}

	if h.panicOn[item] {
		panic("model state corrupted")
	}

	if h.blockOn[item] {
		<-ctx.Done()

		return payload{}, ctx.Err()
	}

	if err, ok := h.failOn[item]; ok {
		return payload{}, err
	}

	return payload{Text: strings.ToUpper(item)}, nil
}

func (h *fakeHandle) Release() error {
	h.released++

	return nil
}

type recordingObserver struct {
	indexes  []int
	failures int
}

func (o *recordingObserver) OnItemDone(index, _ int, _ any, failure *batch.Failure, _ time.Duration) {
	o.indexes = append(o.indexes, index)
	if failure != nil {
		o.failures++
	}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "batch-test.log")
	require.NoError(t, err)

	return testLogger
}

func newProcessor(
	t *testing.T,
	handle *fakeHandle,
	validate batch.Validator[string],
	settings batch.Settings,
) (*batch.Processor[string, payload], *int) {
	t.Helper()

	acquisitions := 0
	acquire := func(context.Context) (batch.Handle[string, payload], error) {
		acquisitions++

		return handle, nil
	}

	return batch.New(validate, acquire, newTestLogger(t), settings), &acquisitions
}

func rejectMissing(item string) (string, error) {
	if strings.HasPrefix(item, "missing") {
		return "", fmt.Errorf("%w: %s", core.ErrNotFound, item)
	}

	return "normalized/" + item, nil
}

func TestRun_PreservesOrderAndLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{1, 2, 7, 64} {
		t.Run(fmt.Sprintf("n=%d", size), func(t *testing.T) {
			t.Parallel()

			items := make([]string, size)
			for i := range items {
				items[i] = fmt.Sprintf("item-%03d", i)
			}

			handle := &fakeHandle{}
			processor, acquisitions := newProcessor(t, handle, nil, batch.Settings{})

			result, err := processor.Run(context.Background(), items)
			require.NoError(t, err)
			require.Equal(t, size, result.Len())
			assert.Equal(t, 1, *acquisitions, "handle is acquired once per batch")
			assert.Equal(t, 1, handle.released)
			assert.NotEmpty(t, result.ID)

			for i, entry := range result.Entries {
				assert.Equal(t, items[i], entry.Item)
				assert.Equal(t, strings.ToUpper(items[i]), entry.Outcome.Value.Text)
			}
		})
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	t.Parallel()

	handle := &fakeHandle{
		failOn:  map[string]error{"normalized/bad": errMockModel},
		panicOn: map[string]bool{"normalized/crash": true},
	}
	observer := &recordingObserver{}
	processor, _ := newProcessor(t, handle, rejectMissing, batch.Settings{Observer: observer})

	items := []string{"a", "missing.wav", "bad", "crash", "z"}

	result, err := processor.Run(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, len(items), result.Len())

	assert.True(t, result.Entries[0].Outcome.OK())
	assert.Equal(t, core.KindNotFound, result.Entries[1].Outcome.Failure.Kind)
	assert.Equal(t, core.KindModelInvocation, result.Entries[2].Outcome.Failure.Kind)
	assert.Equal(t, errMockModel.Error(), result.Entries[2].Outcome.Failure.Message)
	assert.Equal(t, core.KindModelInvocation, result.Entries[3].Outcome.Failure.Kind)
	assert.Contains(t, result.Entries[3].Outcome.Failure.Message, "model state corrupted")
	assert.True(t, result.Entries[4].Outcome.OK())

	assert.Equal(t, 2, result.Succeeded())
	assert.Equal(t, 3, result.Failed())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, observer.indexes)
	assert.Equal(t, 3, observer.failures)

	assert.NotContains(t, handle.invoked, "normalized/missing.wav", "invalid items never reach the model")
	assert.Equal(t, "normalized/z", handle.invoked[len(handle.invoked)-1], "items after failures are still attempted")
	assert.Equal(t, "missing.wav", result.Entries[1].Item, "entries keep the original reference")
}

func TestRun_SingleFailureAtPositionK(t *testing.T) {
	t.Parallel()

	const size = 9

	for k := range size {
		items := make([]string, size)
		for i := range items {
			items[i] = fmt.Sprintf("ok-%d.wav", i)
		}

		items[k] = "missing.wav"

		processor, _ := newProcessor(t, &fakeHandle{}, rejectMissing, batch.Settings{})

		result, err := processor.Run(context.Background(), items)
		require.NoError(t, err)

		for i, entry := range result.Entries {
			assert.Equal(t, i != k, entry.Outcome.OK(), "position %d with failure at %d", i, k)
		}
	}
}

func TestRun_EmptyBatchIsValidationFailure(t *testing.T) {
	t.Parallel()

	processor, acquisitions := newProcessor(t, &fakeHandle{}, nil, batch.Settings{})

	for _, items := range [][]string{nil, {}} {
		result, err := processor.Run(context.Background(), items)
		require.Nil(t, result)
		require.ErrorIs(t, err, batch.ErrNoItems)
		require.ErrorIs(t, err, core.ErrValidation)

		batchErr, ok := batch.AsError(err)
		require.True(t, ok)
		assert.Equal(t, core.KindValidation, batchErr.Kind)
	}

	assert.Zero(t, *acquisitions, "no model is acquired for an empty batch")
}

func TestRun_SetupFailureAttemptsNothing(t *testing.T) {
	t.Parallel()

	errLoad := errors.New("weights corrupted")
	validated := 0
	validate := func(item string) (string, error) {
		validated++

		return item, nil
	}
	acquire := func(context.Context) (batch.Handle[string, payload], error) {
		return nil, errLoad
	}

	processor := batch.New(validate, acquire, newTestLogger(t), batch.Settings{})

	result, err := processor.Run(context.Background(), []string{"a.wav", "b.wav"})
	require.Nil(t, result)
	require.ErrorIs(t, err, errLoad)
	require.ErrorIs(t, err, core.ErrSetup)

	batchErr, ok := batch.AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindSetup, batchErr.Kind)
	assert.Zero(t, validated)
}

func TestRun_ItemTimeoutDoesNotStallBatch(t *testing.T) {
	t.Parallel()

	handle := &fakeHandle{blockOn: map[string]bool{"slow": true}}
	processor, _ := newProcessor(t, handle, nil, batch.Settings{ItemTimeout: 20 * time.Millisecond})

	result, err := processor.Run(context.Background(), []string{"slow", "fast"})
	require.NoError(t, err)

	failure := result.Entries[0].Outcome.Failure
	require.NotNil(t, failure)
	assert.Equal(t, core.KindTimeout, failure.Kind)
	assert.Contains(t, failure.Message, "timed out after 20ms")
	assert.True(t, result.Entries[1].Outcome.OK())
}

func TestResult_JSONShape(t *testing.T) {
	t.Parallel()

	handle := &fakeHandle{}
	validate := func(item string) (string, error) {
		if item == "missing.wav" {
			return "", fmt.Errorf("%w: File not found: ../missing.wav", core.ErrNotFound)
		}

		return item, nil
	}
	processor, _ := newProcessor(t, handle, validate, batch.Settings{})

	result, err := processor.Run(context.Background(), []string{"a/valid.wav", "missing.wav"})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	assert.JSONEq(t, `[
		[{"text": "A/VALID.WAV"}, "a/valid.wav"],
		[{"error": "not found: File not found: ../missing.wav"}, "missing.wav"]
	]`, string(data))
}
