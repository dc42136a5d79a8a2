package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestQuizError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *QuizError
		want string
	}{
		{
			name: "basic error without wrapped error",
			err: &QuizError{
				Type:    ValidationError,
				Message: "invalid input",
			},
			want: "validation_error: invalid input",
		},
		{
			name: "error with details",
			err: &QuizError{
				Type:    MalformedLineError,
				Message: "line 3 is malformed",
				Details: "missing Correct: field",
			},
			want: "malformed_line: line 3 is malformed (missing Correct: field)",
		},
		{
			name: "error with wrapped error",
			err: &QuizError{
				Type:    UpstreamError,
				Message: "AI Error",
				err:     errors.New("quota exceeded"),
			},
			want: "upstream_error: AI Error: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("QuizError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuizError_Is(t *testing.T) {
	err1 := &QuizError{Type: EmptyResultError, Message: "test1"}
	err2 := &QuizError{Type: EmptyResultError, Message: "test2"}
	err3 := &QuizError{Type: ValidationError, Message: "test3"}

	if !err1.Is(err2) {
		t.Error("Expected err1.Is(err2) to be true for same error type")
	}
	if err1.Is(err3) {
		t.Error("Expected err1.Is(err3) to be false for different error types")
	}

	wrapped := fmt.Errorf("parse reply: %w", err1)
	if !errors.Is(wrapped, ErrEmptyResult) {
		t.Error("Expected wrapped error to match ErrEmptyResult")
	}
	if errors.Is(wrapped, ErrFormatValidation) {
		t.Error("Expected wrapped error not to match ErrFormatValidation")
	}
}

func TestQuizError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	err := &QuizError{
		Type:    InternalError,
		Message: "outer error",
		err:     innerErr,
	}

	if unwrapped := err.Unwrap(); unwrapped != innerErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, innerErr)
	}
}
