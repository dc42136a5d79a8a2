package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/middleware"
	"github.com/GokulKGit/quiz-API/server/mocks"
	"github.com/GokulKGit/quiz-API/server/processing"
)

const goodReply = `Here you go:
Question 1: What does the 'printf' function do? | Prints to the screen | Reads input | Allocates memory | Terminates the program | Correct: Prints to the screen | Explanation: The 'printf' function is used to display output on the screen.
Question 2: What is the size of an integer in C? | 2 bytes | 4 bytes | 8 bytes | Depends on the compiler | Correct: Depends on the compiler | Explanation: It depends on the architecture.
Question 3: broken | A`

type questionResponse struct {
	Topic     string                      `json:"topic"`
	Number    int                         `json:"number"`
	Level     string                      `json:"level"`
	Questions []processing.QuestionRecord `json:"questions"`
	Skipped   int                         `json:"skipped_count"`
}

func newTestHandler(t *testing.T, category processing.Category, gen *mocks.MockGenerator) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LLM.Timeout = 100 * time.Millisecond
	proc, err := processing.NewProcessor(cfg, gen, zaptest.NewLogger(t))
	require.NoError(t, err)
	h := NewQuestionHandler(category, proc, zaptest.NewLogger(t),
		WithMaxBodyBytes(1024),
		WithTimeout(cfg.LLM.Timeout),
	)
	return middleware.RequestID(h)
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestQuestionHandlerSuccess(t *testing.T) {
	gen := mocks.NewStaticGenerator(goodReply)
	h := newTestHandler(t, processing.LogicalReasoning, gen)

	rr := post(h, `{"topic": "C basics", "number": 2, "level": "easy"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))

	var resp questionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "C basics", resp.Topic)
	assert.Equal(t, 2, resp.Number)
	assert.Equal(t, "easy", resp.Level)
	require.Len(t, resp.Questions, 2)
	// Lenient filter for logical: the chatter line and the broken line are skipped.
	assert.Equal(t, 2, resp.Skipped)
	assert.Equal(t, "Prints to the screen", resp.Questions[0].Correct)
	assert.Len(t, resp.Questions[1].Options, 4)

	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0], `with a focus on "C basics"`)
}

func TestQuestionHandlerValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"missing level", `{"topic": "Go", "number": 3}`, http.StatusBadRequest, errors.MsgMissingFields},
		{"zero number", `{"topic": "Go", "number": 0, "level": "easy"}`, http.StatusBadRequest, errors.MsgMissingFields},
		{"empty object", `{}`, http.StatusBadRequest, errors.MsgMissingFields},
		{"not json", `topic=Go`, http.StatusBadRequest, errors.MsgMissingFields},
		{"too large", `{"topic": "` + strings.Repeat("x", 2048) + `", "number": 1, "level": "easy"}`, http.StatusRequestEntityTooLarge, "Request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mocks.NewStaticGenerator(goodReply)
			rr := post(newTestHandler(t, processing.Programming, gen), tt.body)

			assert.Equal(t, tt.wantCode, rr.Code)
			var body errors.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Empty(t, body.Details)

			// Validation happens before any provider call.
			assert.Equal(t, 0, gen.Calls())
		})
	}
}

func TestQuestionHandlerFailures(t *testing.T) {
	tests := []struct {
		name        string
		gen         func(context.Context, string) (string, error)
		wantCode    int
		wantMsg     string
		wantDetails string
	}{
		{
			name: "upstream error",
			gen: func(context.Context, string) (string, error) {
				return "", fmt.Errorf("API key not valid")
			},
			wantCode:    http.StatusInternalServerError,
			wantMsg:     errors.MsgUpstream,
			wantDetails: "API key not valid",
		},
		{
			name: "unparseable reply",
			gen: func(context.Context, string) (string, error) {
				return "I would rather not.", nil
			},
			wantCode: http.StatusInternalServerError,
			wantMsg:  errors.MsgParseFailure,
		},
		{
			name: "provider timeout",
			gen: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			wantCode:    http.StatusGatewayTimeout,
			wantMsg:     errors.MsgTimeout,
			wantDetails: "timeout after 100ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, processing.QuantitativeAptitude, mocks.NewMockGenerator(tt.gen))
			rr := post(h, `{"topic": "ratios", "number": 2, "level": "hard"}`)

			assert.Equal(t, tt.wantCode, rr.Code)
			var body errors.ErrorResponse
			require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&body))
			assert.Equal(t, tt.wantMsg, body.Error)
			if tt.wantDetails != "" {
				assert.Equal(t, tt.wantDetails, body.Details)
			}
		})
	}
}

func TestHome(t *testing.T) {
	rr := httptest.NewRecorder()
	Home(zaptest.NewLogger(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success": 1, "message": "This is My First REST API..."}`, rr.Body.String())
}
