// Package httpapi exposes batch transcription over HTTP with gin.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/transcription"
	"github.com/gin-gonic/gin"
)

// BatchTranscriber runs one transcription batch.
type BatchTranscriber interface {
	Transcribe(ctx context.Context, audios []string, observer batch.Observer) (*transcription.Result, error)
}

// ModelCache is the subset of the model pool the admin routes use.
type ModelCache interface {
	Invalidate(name string) bool
	Cached() []string
}

// TranscribeRequest is the body of POST /transcribe.
type TranscribeRequest struct {
	Audios []string `json:"audios"`
}

// ErrorResponse is returned whenever no per-item result can be produced.
type ErrorResponse struct {
	Error string    `json:"error"`
	Kind  core.Kind `json:"kind"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string   `json:"status"`
	Model  string   `json:"model"`
	Cached []string `json:"cachedModels"`
}

// Controller serves the transcription routes.
type Controller struct {
	transcriber BatchTranscriber
	models      ModelCache
	model       string
	log         *logger.Logger
}

// NewController creates a Controller. models may be nil to disable the admin route.
func NewController(transcriber BatchTranscriber, models ModelCache, model string, log *logger.Logger) *Controller {
	return &Controller{
		transcriber: transcriber,
		models:      models,
		model:       model,
		log:         log,
	}
}

// RegisterRoutes mounts the controller on router.
func (c *Controller) RegisterRoutes(router gin.IRouter) {
	router.POST("/transcribe", c.Transcribe)
	router.GET("/health", c.Health)

	if c.models != nil {
		router.DELETE("/models/:name", c.InvalidateModel)
	}
}

// Transcribe runs the batch. Per-file failures are part of a 200 response body.
func (c *Controller) Transcribe(ginCtx *gin.Context) {
	var request TranscribeRequest

	err := ginCtx.ShouldBindJSON(&request)
	if err != nil {
		c.log.Warn("Rejected transcription request: %v", err)
		c.abort(ginCtx, batch.ValidationError(fmt.Errorf("invalid request body: %w", err)))

		return
	}

	result, err := c.transcriber.Transcribe(ginCtx.Request.Context(), request.Audios, nil)
	if err != nil {
		c.abort(ginCtx, err)

		return
	}

	ginCtx.JSON(http.StatusOK, result)
}

// Health reports liveness and the models currently cached.
func (c *Controller) Health(ginCtx *gin.Context) {
	cached := []string{}
	if c.models != nil {
		cached = append(cached, c.models.Cached()...)
	}

	ginCtx.JSON(http.StatusOK, HealthResponse{Status: "ok", Model: c.model, Cached: cached})
}

// InvalidateModel drops a cached model so the next batch reloads it.
func (c *Controller) InvalidateModel(ginCtx *gin.Context) {
	name := ginCtx.Param("name")

	if !c.models.Invalidate(name) {
		ginCtx.JSON(http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("model %q is not cached", name),
			Kind:  core.KindNotFound,
		})

		return
	}

	c.log.Info("Invalidated cached model %s", name)
	ginCtx.Status(http.StatusNoContent)
}

func (c *Controller) abort(ginCtx *gin.Context, err error) {
	kind := core.Classify(err)

	batchErr, ok := batch.AsError(err)
	if ok {
		kind = batchErr.Kind
	}

	ginCtx.AbortWithStatusJSON(statusFor(kind), ErrorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation, core.KindArgument:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindSetup:
		return http.StatusServiceUnavailable
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewRouter builds a gin engine with recovery and the controller routes.
func NewRouter(controller *Controller) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	err := router.SetTrustedProxies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	controller.RegisterRoutes(router)

	return router, nil
}
