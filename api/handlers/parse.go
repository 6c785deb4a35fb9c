package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/attachment-extractor/internal/diag"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/internal/service/parser"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// DocumentParser is the slice of the parser facade the API needs.
type DocumentParser interface {
	Parse(ctx context.Context, ref models.DocumentReference, opts *parser.Options) *models.ParsedContent
	Diagnostics() []diag.Entry
}

// ParseOptions mirrors parser.Options on the wire.
type ParseOptions struct {
	TimeoutMs             int64  `json:"timeoutMs"`
	BypassCache           bool   `json:"bypassCache"`
	EnableWebpageFallback bool   `json:"enableWebpageFallback"`
	FallbackContent       string `json:"fallbackContent"`
}

// ParseRequest is the body of POST /documents/parse.
type ParseRequest struct {
	URL            string       `json:"url" binding:"required"`
	Type           string       `json:"type"`
	Name           string       `json:"name"`
	PartialContent string       `json:"partialContent"`
	Options        ParseOptions `json:"options"`
}

// ErrorResponse is returned for malformed requests only; parse failures
// themselves are data inside ParsedContent.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ParseHandler struct {
	service DocumentParser
	logger  logger.ContextLogger
}

func NewParseHandler(service DocumentParser, log logger.Logger) *ParseHandler {
	return &ParseHandler{service: service, logger: logger.NewContextLogger(log)}
}

// ParseDocument runs the extraction pipeline for one document reference.
// The response is always HTTP 200 with a ParsedContent body; Success=false
// results carry the error category and recovery suggestions.
func (h *ParseHandler) ParseDocument(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid parse request", err)
		return
	}

	ref := models.DocumentReference{
		URL:            req.URL,
		Type:           models.DocType(req.Type),
		Name:           req.Name,
		PartialContent: req.PartialContent,
	}
	opts := &parser.Options{
		Timeout:               time.Duration(req.Options.TimeoutMs) * time.Millisecond,
		BypassCache:           req.Options.BypassCache,
		EnableWebpageFallback: req.Options.EnableWebpageFallback,
		FallbackContent:       req.Options.FallbackContent,
	}

	log := h.logger.FromContext(c.Request.Context())
	log.Info("Parse request received",
		logger.String("url", ref.URL),
		logger.String("type", string(ref.Type)),
	)

	result := h.service.Parse(c.Request.Context(), ref, opts)

	log.Info("Parse request finished",
		logger.Bool("success", result.Success),
		logger.String("fallbackUsed", result.FallbackUsed),
	)
	c.JSON(http.StatusOK, result)
}

// Diagnostics returns the capped pipeline transition log.
func (h *ParseHandler) Diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"entries": h.service.Diagnostics(),
	})
}

// Health is the liveness probe.
func (h *ParseHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ParseHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.FromContext(c.Request.Context()).Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
