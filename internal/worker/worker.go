// Package worker provides a NATS request/reply worker that runs transcription batches.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/transcription"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const defaultHandleTimeout = 30 * time.Minute

// ErrMalformedRequest indicates that a request payload is not a BatchRequest.
var ErrMalformedRequest = errors.New("malformed batch request")

// BatchTranscriber runs one transcription batch.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, audios []string, observer batch.Observer) (*transcription.Result, error)
}

// BatchRequest asks for the listed audio files to be transcribed.
type BatchRequest struct {
	Header events.EventHeader `json:"header"`
	Audios []string           `json:"audios"`
}

// ErrorBody is the structured batch-level error carried in a reply.
type ErrorBody struct {
	Message string    `json:"message"`
	Kind    core.Kind `json:"kind"`
}

// BatchReply answers a BatchRequest with either results or a batch-level error.
type BatchReply struct {
	Header  events.EventHeader    `json:"header"`
	BatchID string                `json:"batchId,omitempty"`
	Results *transcription.Result `json:"results,omitempty"`
	Error   *ErrorBody            `json:"error,omitempty"`
}

// NatsWorker listens for batch requests on a NATS subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	transcriber    BatchTranscriber
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a worker. A zero timeout uses the default handling budget.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	transcriber BatchTranscriber,
	timeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		transcriber:    transcriber,
		timeout:        timeout,
		log:            log,
	}
}

// Run subscribes and blocks until ctx is cancelled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for transcription batches on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.timeout)
	defer cancel()

	request, err := parseRequest(msg)
	if err != nil {
		w.log.Error("Failed to parse batch request: %v", err)
		w.respond(msg, failureReply(events.EventHeader{}, batch.ValidationError(err)))

		return
	}

	reply := w.process(ctx, request)

	w.respond(msg, reply)
}

func (w *NatsWorker) process(ctx context.Context, request *BatchRequest) *BatchReply {
	header := replyHeader(request.Header)

	result, err := w.transcriber.Transcribe(ctx, request.Audios, nil)
	if err != nil {
		w.log.Error("Batch for workflow %s failed: %v", request.Header.WorkflowID, err)

		return failureReply(header, err)
	}

	w.log.Info("Batch %s for workflow %s: %d succeeded, %d failed",
		result.ID, request.Header.WorkflowID, result.Succeeded(), result.Failed())

	return &BatchReply{Header: header, BatchID: result.ID, Results: result}
}

func (w *NatsWorker) respond(msg *nats.Msg, reply *BatchReply) {
	if msg.Reply == "" {
		w.log.Warn("Batch request on %s has no reply subject; result dropped", msg.Subject)

		return
	}

	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal batch reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish batch reply: %v", err)
	}
}

func parseRequest(msg *nats.Msg) (*BatchRequest, error) {
	var request BatchRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	return &request, nil
}

// replyHeader keeps the workflow identity and stamps a fresh event.
func replyHeader(request events.EventHeader) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: request.WorkflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}

func failureReply(header events.EventHeader, err error) *BatchReply {
	kind := core.Classify(err)

	batchErr, ok := batch.AsError(err)
	if ok {
		kind = batchErr.Kind
	}

	return &BatchReply{
		Header: header,
		Error:  &ErrorBody{Message: err.Error(), Kind: kind},
	}
}
