// Package errors provides the error taxonomy and JSON error responses for the
// quiz API. Every failure that reaches the HTTP boundary is converted into a
// QuizError and written as a `{"error": ..., "details": ...}` body.
//
// The package is used throughout the codebase so that the parser, the
// provider layer and the handlers agree on error categories:
//
//   - ValidationError: the request is missing required fields
//   - UpstreamError: the generation provider reported a failure
//   - MalformedLineError: a single reply line could not be parsed
//   - EmptyResultError / FormatValidationError: no usable questions survived parsing
//
// Basic usage:
//
//	errors.WriteError(w, errors.NewValidationError(requestID, errors.MsgMissingFields))
//
//	if errors.Is(err, errors.ErrEmptyResult) {
//	    ...
//	}
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the logger used by helpers in this package when no
// logger is passed explicitly. It can be replaced with SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger replaces DefaultLogger. A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes a QuizError.
type ErrorType string

const (
	// ValidationError represents a request missing required fields.
	ValidationError ErrorType = "validation_error"

	// UpstreamError represents a failure reported by the generation provider.
	UpstreamError ErrorType = "upstream_error"

	// MalformedLineError represents a single reply line that failed parsing.
	MalformedLineError ErrorType = "malformed_line"

	// EmptyResultError represents a reply that produced no valid questions.
	EmptyResultError ErrorType = "empty_result"

	// FormatValidationError represents a batch rejected because one of its
	// lines did not conform to the required format.
	FormatValidationError ErrorType = "format_validation_error"

	// InternalError represents unexpected failures.
	InternalError ErrorType = "internal_error"

	// TimeoutError represents a request that exceeded its deadline.
	TimeoutError ErrorType = "timeout_error"

	// UnavailableError represents a request rejected for lack of capacity.
	UnavailableError ErrorType = "unavailable_error"

	// ConfigError represents invalid configuration.
	ConfigError ErrorType = "config_error"
)

// Client-facing messages.
const (
	MsgMissingFields     = "Please provide 'topic', 'number', and 'level' in the request body."
	MsgUpstream          = "AI Error"
	MsgParseFailure      = "Failed to parse questions. Ensure AI response follows the correct format."
	MsgGenerationFailure = "Failed to generate questions"
	MsgTimeout           = "Request timeout"
	MsgUnavailable       = "Server is busy, try again later"
	MsgInternal          = "Internal server error"
)

// Sentinels for errors.Is matching. Only the Type is compared.
var (
	ErrValidation       = &QuizError{Type: ValidationError}
	ErrUpstream         = &QuizError{Type: UpstreamError}
	ErrMalformedLine    = &QuizError{Type: MalformedLineError}
	ErrEmptyResult      = &QuizError{Type: EmptyResultError}
	ErrFormatValidation = &QuizError{Type: FormatValidationError}
)

// QuizError carries an error category together with the client-facing body.
// Only Message and Details are serialized.
type QuizError struct {
	// Type categorizes the error
	Type ErrorType `json:"-"`

	// Message is the summary returned as "error"
	Message string `json:"error"`

	// Details carries the underlying cause returned as "details"
	Details string `json:"details,omitempty"`

	// Code is the HTTP status code
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"-"`

	err error
}

// Error implements the error interface.
func (e *QuizError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *QuizError) Unwrap() error {
	return e.err
}

// Is reports whether target is a QuizError of the same Type.
func (e *QuizError) Is(target error) bool {
	t, ok := target.(*QuizError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes err as a JSON body with its status code.
func WriteError(w http.ResponseWriter, err *QuizError) {
	code := err.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}
	if err.RequestID != "" && w.Header().Get("X-Request-ID") == "" {
		w.Header().Set("X-Request-ID", err.RequestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Warn("failed to encode error response", zap.Error(encErr))
	}
}

// Error is a drop-in replacement for http.Error that writes an
// InternalError-typed JSON body.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but lets the caller choose the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &QuizError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
