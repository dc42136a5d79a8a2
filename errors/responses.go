// Package errors provides error response utilities.
package errors

import (
	"context"
	"errors"
	"time"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Response returns the serializable body of e.
func (e *QuizError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Message, Details: e.Details}
}

// As is a wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// FromError maps any error raised while serving a generation request to the
// QuizError that should be written to the client. timeout is reported in the
// details of deadline failures.
func FromError(requestID string, err error, timeout time.Duration) *QuizError {
	if err == nil {
		return nil
	}

	var qe *QuizError
	if errors.As(err, &qe) {
		switch qe.Type {
		case EmptyResultError, FormatValidationError, MalformedLineError:
			return NewParseError(requestID, qe)
		default:
			out := *qe
			out.RequestID = requestID
			return &out
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(requestID, timeout, err)
	}

	return NewGenerationError(requestID, err)
}
