// Package whisper provides a transcription backend for OpenAI-compatible
// speech-to-text endpoints, requesting segment and word timestamps.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/core"
)

// Error messages.
const (
	errFailedToOpenFile       = "failed to open audio file: %w"
	errFailedToCloseFile      = "Failed to close audio file %s: %v"
	errFailedToCreateFormFile = "failed to create form file: %w"
	errFailedToCopyFileData   = "failed to copy file data: %w"
	errFailedToWriteFormField = "failed to write form field %s: %w"
	errFailedToCloseWriter    = "failed to close multipart writer: %w"
	errFailedToCreateRequest  = "failed to create request: %w"
	errFailedToCloseRespBody  = "Failed to close transcription response body: %v"
	errFailedToMakeRequest    = "failed to make request: %w"
	errAPIRequestFailed       = "transcription request failed with status %d: %s"
	errFailedToDecodeResponse = "failed to decode transcription response: %w"
	errFailedToResolveModel   = "failed to resolve model URL: %w"
	errModelUnavailable       = "transcription model %q unavailable: status %d: %s"
)

// ErrEmptyModel indicates that no model name was supplied.
var ErrEmptyModel = errors.New("transcription model name is empty")

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
)

// Form field names.
const (
	formFieldFile           = "file"
	formFieldModel          = "model"
	formFieldLanguage       = "language"
	formFieldResponseFormat = "response_format"
	formFieldGranularities  = "timestamp_granularities[]"
)

const responseFormatVerbose = "verbose_json"

// Client calls a transcription endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	log        *logger.Logger
}

// NewClient creates a Client. An empty apiKey omits the Authorization header,
// which local servers accept.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    baseURL,
		log:        log,
	}
}

// NewClientFromEnv creates a Client reading the API key from envName.
func NewClientFromEnv(baseURL, envName string, timeout time.Duration, log *logger.Logger) *Client {
	return NewClient(baseURL, os.Getenv(envName), timeout, log)
}

// CheckModel confirms the backend is reachable and serves model. The model
// resource is resolved as a sibling of the transcription endpoint, so
// {host}/v1/audio/transcriptions checks {host}/v1/models/{model}.
func (c *Client) CheckModel(ctx context.Context, model string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf(errFailedToResolveModel, err)
	}

	target := base.ResolveReference(&url.URL{Path: "../models/" + model})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf(errFailedToCreateRequest, err)
	}

	if c.apiKey != "" {
		req.Header.Set(headerAuthorization, "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(errFailedToMakeRequest, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			c.log.Warn(errFailedToCloseRespBody, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))

		return fmt.Errorf(errModelUnavailable, model, resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	return nil
}

type verboseWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type verboseSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type verboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []verboseSegment `json:"segments"`
	Words    []verboseWord    `json:"words"`
}

// TranscribeFile transcribes audioPath with model, returning segments with the
// words that start inside them.
func (c *Client) TranscribeFile(ctx context.Context, audioPath, model, language string) (*core.Transcript, error) {
	body, contentType, err := c.buildForm(audioPath, model, language)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return nil, fmt.Errorf(errFailedToCreateRequest, err)
	}

	if c.apiKey != "" {
		req.Header.Set(headerAuthorization, "Bearer "+c.apiKey)
	}

	req.Header.Set(headerContentType, contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFailedToMakeRequest, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			c.log.Warn(errFailedToCloseRespBody, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)

		return nil, fmt.Errorf(errAPIRequestFailed, resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	var decoded verboseResponse

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return nil, fmt.Errorf(errFailedToDecodeResponse, err)
	}

	return toTranscript(decoded, language), nil
}

func (c *Client) buildForm(audioPath, model, language string) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToOpenFile, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			c.log.Warn(errFailedToCloseFile, audioPath, closeErr)
		}
	}()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCreateFormFile, err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCopyFileData, err)
	}

	fields := [][2]string{
		{formFieldModel, model},
		{formFieldResponseFormat, responseFormatVerbose},
		{formFieldGranularities, "segment"},
		{formFieldGranularities, "word"},
	}

	if language != "" {
		fields = append(fields, [2]string{formFieldLanguage, language})
	}

	for _, field := range fields {
		err = writer.WriteField(field[0], field[1])
		if err != nil {
			return nil, "", fmt.Errorf(errFailedToWriteFormField, field[0], err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCloseWriter, err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// toTranscript attaches each word to the segment containing its start time.
// Words past the last segment end belong to the last segment.
func toTranscript(resp verboseResponse, requestedLanguage string) *core.Transcript {
	transcript := &core.Transcript{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]core.Segment, 0, len(resp.Segments)),
	}

	if transcript.Language == "" {
		transcript.Language = requestedLanguage
	}

	for _, segment := range resp.Segments {
		transcript.Segments = append(transcript.Segments, core.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}

	if len(transcript.Segments) == 0 && len(resp.Words) > 0 {
		transcript.Segments = append(transcript.Segments, core.Segment{
			Start: resp.Words[0].Start,
			End:   resp.Words[len(resp.Words)-1].End,
			Text:  resp.Text,
		})
	}

	sort.SliceStable(transcript.Segments, func(i, j int) bool {
		return transcript.Segments[i].Start < transcript.Segments[j].Start
	})

	for _, word := range resp.Words {
		index := segmentFor(transcript.Segments, word.Start)
		transcript.Segments[index].Words = append(transcript.Segments[index].Words, core.Word{
			Text:  word.Word,
			Start: word.Start,
			End:   word.End,
		})
	}

	return transcript
}

func segmentFor(segments []core.Segment, start float64) int {
	for i, segment := range segments {
		if start < segment.End {
			return i
		}
	}

	return len(segments) - 1
}
