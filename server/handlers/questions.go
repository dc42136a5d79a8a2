// Package handlers provides the HTTP handlers of the quiz API: one question
// generation handler per category, plus the home and health endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/middleware"
	"github.com/GokulKGit/quiz-API/server/processing"
	"github.com/GokulKGit/quiz-API/server/validation"
)

// QuestionProcessor runs the generation pipeline for a decoded request.
// *processing.Processor satisfies it.
type QuestionProcessor interface {
	Process(ctx context.Context, req processing.QuestionRequest) (*processing.QuestionSet, error)
}

// QuestionHandler serves the generate-*-questions endpoint of one category.
type QuestionHandler struct {
	category     processing.Category
	processor    QuestionProcessor
	logger       *zap.Logger
	maxBodyBytes int64
	timeout      time.Duration
}

// QuestionHandlerOption configures a QuestionHandler.
type QuestionHandlerOption func(*QuestionHandler)

// WithMaxBodyBytes caps the request body size. Zero disables the cap.
func WithMaxBodyBytes(n int64) QuestionHandlerOption {
	return func(h *QuestionHandler) { h.maxBodyBytes = n }
}

// WithTimeout sets the duration reported when a request times out.
func WithTimeout(d time.Duration) QuestionHandlerOption {
	return func(h *QuestionHandler) { h.timeout = d }
}

// NewQuestionHandler creates a handler for category.
func NewQuestionHandler(category processing.Category, processor QuestionProcessor, logger *zap.Logger, opts ...QuestionHandlerOption) *QuestionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &QuestionHandler{
		category:  category,
		processor: processor,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP decodes the request, runs generation and writes either the
// question set or a JSON error body.
func (h *QuestionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	logger := middleware.WithTrace(r.Context(), h.logger, requestID).With(
		zap.String("category", string(h.category)),
	)

	req, err := validation.DecodeQuestionRequest(w, r, h.category, h.maxBodyBytes)
	if err != nil {
		qe := errors.FromError(requestID, err, h.timeout)
		errors.LogError(logger, qe, requestID)
		errors.WriteError(w, qe)
		return
	}

	logger.Debug("Generating questions",
		zap.String("topic", req.Topic),
		zap.Int("number", req.Count),
		zap.String("level", req.Level),
	)

	set, err := h.processor.Process(r.Context(), req)
	if err != nil {
		qe := errors.FromError(requestID, err, h.timeout)
		errors.LogError(logger, qe, requestID)
		errors.WriteError(w, qe)
		return
	}

	logger.Info("Questions generated",
		zap.Int("questions", len(set.Questions)),
		zap.Int("skipped", set.Skipped),
	)
	writeJSON(w, http.StatusOK, set, logger)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}
