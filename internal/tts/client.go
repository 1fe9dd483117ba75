// Package tts is the voice-cloning speech synthesis backend. It talks to a
// standalone XTTS-style HTTP service that returns WAV audio.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/voicebatch/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Default values.
const (
	defaultTemperature = 0.75
	defaultLanguage    = "en"
)

// Error messages.
const (
	errUnexpectedContentType   = "unexpected content type: expected audio/wav, got %s"
	errFmtServiceErrorWithCode = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "TTS service returned non-OK status: %s, body: %s"
)

var (
	// ErrTextEmpty indicates a synthesis request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates a successful response without audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// HTTPClient calls the TTS service.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	temperature float64
}

// Request is the JSON payload of a generation request.
type Request struct {
	Text string `json:"text"`

	// SpeakerRefPath is the reference recording used for voice cloning. The
	// service must be able to read it.
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`

	Language string `json:"language"`

	// Temperature ranges from 0.0 (deterministic) to 2.0.
	Temperature float64 `json:"temperature"`
}

// ErrorResponse is a structured error from the TTS service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the service at baseURL
// (e.g. "http://localhost:8000").
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		temperature: defaultTemperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithTemperature sets the temperature used by Synthesize.
func (c *HTTPClient) WithTemperature(temperature float64) *HTTPClient {
	if temperature > 0 {
		c.temperature = temperature
	}

	return c
}

// Synthesize implements core.Synthesizer.
func (c *HTTPClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	return c.GenerateSpeech(ctx, Request{
		Text:           req.Text,
		SpeakerRefPath: req.SpeakerRefPath,
		Language:       req.Language,
		Temperature:    c.temperature,
	})
}

// GenerateSpeech sends a generation request and returns the WAV bytes.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrTextEmpty)
	}

	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to TTS service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// HealthCheck returns an error unless the service reports healthy.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse falls back to the raw body when the error is not JSON.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(bytes.TrimSpace(body)))
}
