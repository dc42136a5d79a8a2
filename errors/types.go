package errors

import (
	"fmt"
	"net/http"
	"time"
)

// NewError creates a QuizError with full control over its fields. Prefer
// the specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "template execution failed", 500, "req_123", "", tmplErr)
func NewError(errType ErrorType, message string, code int, requestID string, details string, err error) *QuizError {
	return &QuizError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a 400 error for a request that is missing
// required fields or cannot be decoded.
//
// Example:
//
//	err := NewValidationError("req_123", MsgMissingFields)
func NewValidationError(requestID, message string) *QuizError {
	return &QuizError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
	}
}

// NewUpstreamError wraps a failure reported by the generation provider.
// The provider's message is surfaced as details.
func NewUpstreamError(requestID string, err error) *QuizError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &QuizError{
		Type:      UpstreamError,
		Message:   MsgUpstream,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewMalformedLineError reports a reply line that could not be turned into
// a question record. Line numbers are 1-based positions in the raw reply.
func NewMalformedLineError(line int, reason string) *QuizError {
	return &QuizError{
		Type:    MalformedLineError,
		Message: fmt.Sprintf("line %d is malformed", line),
		Code:    http.StatusInternalServerError,
		Details: reason,
	}
}

// NewEmptyResultError reports a reply that yielded no valid question records.
func NewEmptyResultError(details string) *QuizError {
	return &QuizError{
		Type:    EmptyResultError,
		Message: "no parseable questions produced",
		Code:    http.StatusInternalServerError,
		Details: details,
	}
}

// NewFormatValidationError reports a batch rejected under the strict parse
// policy. The first offending line is kept as the cause.
func NewFormatValidationError(details string, cause error) *QuizError {
	return &QuizError{
		Type:    FormatValidationError,
		Message: "model output did not conform to the required format",
		Code:    http.StatusInternalServerError,
		Details: details,
		err:     cause,
	}
}

// NewParseError converts a parser failure into the client-facing parse
// failure body, keeping the parser's category.
func NewParseError(requestID string, err *QuizError) *QuizError {
	details := err.Details
	if details == "" {
		details = err.Message
	}
	return &QuizError{
		Type:      err.Type,
		Message:   MsgParseFailure,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewGenerationError is the catch-all for failures during generation that
// are neither upstream nor parse failures.
func NewGenerationError(requestID string, err error) *QuizError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &QuizError{
		Type:      InternalError,
		Message:   MsgGenerationFailure,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewTimeoutError reports a request that ran past its deadline.
func NewTimeoutError(requestID string, timeout time.Duration, err error) *QuizError {
	return &QuizError{
		Type:      TimeoutError,
		Message:   MsgTimeout,
		Code:      http.StatusGatewayTimeout,
		RequestID: requestID,
		Details:   fmt.Sprintf("timeout after %s", timeout),
		err:       err,
	}
}

// NewUnavailableError reports a request rejected because the server is at
// capacity.
func NewUnavailableError(requestID, details string) *QuizError {
	return &QuizError{
		Type:      UnavailableError,
		Message:   MsgUnavailable,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		Details:   details,
	}
}

// NewInternalError creates a 500 error for unexpected failures such as
// recovered panics.
func NewInternalError(requestID string, err error) *QuizError {
	return &QuizError{
		Type:      InternalError,
		Message:   MsgInternal,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
