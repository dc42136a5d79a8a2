package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/mocks"
	"github.com/GokulKGit/quiz-API/server/provider"
)

const reply = `Question 1: Which keyword declares a constant in Go? | var | const | let | def | Correct: const | Explanation: Constants are declared with const.
Question 2: What is the zero value of a pointer? | 0 | nil | undefined | NULL | Correct: B | Explanation: Pointers default to nil.`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.TestMode = true
	cfg.Server.Port = 0
	cfg.LLM.APIKey = ""
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, gen *mocks.MockGenerator) (*Server, *mocks.MockConfigWatcher) {
	t.Helper()
	watcher := mocks.NewMockConfigWatcher(cfg)
	s, err := NewServer(context.Background(), watcher, zaptest.NewLogger(t),
		WithProviders(map[string]provider.Generator{cfg.LLM.Provider: gen}),
	)
	require.NoError(t, err)
	return s, watcher
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestNewServerRequiresConfig(t *testing.T) {
	_, err := NewServer(context.Background(), mocks.NewMockConfigWatcher(nil), zaptest.NewLogger(t))
	assert.Error(t, err)
}

// TestServerEndpoints drives every public route through the full stack with
// a mock provider behind the manager.
func TestServerEndpoints(t *testing.T) {
	gen := mocks.NewStaticGenerator(reply)
	s, _ := newTestServer(t, testConfig(), gen)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	t.Run("home", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.EqualValues(t, 1, body["success"])
	})

	for _, path := range []string{
		"/generate-programming-questions",
		"/generate-logical-questions",
		"/generate-quantative-questions",
	} {
		t.Run(path, func(t *testing.T) {
			resp, data := postJSON(t, ts.URL+path, `{"topic": "Go", "number": 2, "level": "easy"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
			assert.NotEmpty(t, resp.Header.Get("X-Response-Time"))

			var body struct {
				Topic     string `json:"topic"`
				Number    int    `json:"number"`
				Level     string `json:"level"`
				Questions []struct {
					Question string   `json:"question"`
					Options  []string `json:"options"`
					Correct  string   `json:"correct"`
				} `json:"questions"`
				Skipped int `json:"skipped_count"`
			}
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, "Go", body.Topic)
			assert.Equal(t, 2, body.Number)
			require.Len(t, body.Questions, 2)
			assert.Equal(t, "nil", body.Questions[1].Correct)
		})
	}

	t.Run("missing fields", func(t *testing.T) {
		calls := gen.Calls()
		resp, data := postJSON(t, ts.URL+"/generate-logical-questions", `{"topic": "Go", "number": 2}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"error": "Please provide 'topic', 'number', and 'level' in the request body."}`, string(data))
		assert.Equal(t, calls, gen.Calls())
	})

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Status    string `json:"status"`
			Providers []struct {
				Name         string `json:"name"`
				BreakerState string `json:"breaker_state"`
			} `json:"providers"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		require.Len(t, body.Providers, 1)
		assert.Equal(t, "gemini", body.Providers[0].Name)
		assert.Equal(t, "closed", body.Providers[0].BreakerState)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		for _, name := range []string{
			"quiz_http_requests_total",
			"quiz_questions_generated_total",
			"quiz_provider_request_latency_seconds",
			"quiz_circuit_breaker_state",
		} {
			assert.Contains(t, string(data), name)
		}
	})
}

func TestServerUpstreamError(t *testing.T) {
	gen := mocks.NewMockGenerator(func(context.Context, string) (string, error) {
		return "", fmt.Errorf("quota exceeded")
	})
	s, _ := newTestServer(t, testConfig(), gen)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, data := postJSON(t, ts.URL+"/generate-programming-questions", `{"topic": "Go", "number": 2, "level": "easy"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, errors.MsgUpstream, body.Error)
	assert.Equal(t, "quota exceeded", body.Details)
}

func TestServerReload(t *testing.T) {
	gen := mocks.NewStaticGenerator(reply)
	cfg := testConfig()
	cfg.Queue.Enabled = true
	cfg.Queue.MaxConcurrent = 1
	cfg.Queue.MaxSize = 1
	s, _ := newTestServer(t, cfg, gen)
	require.NotNil(t, s.queue)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	updated := testConfig()
	updated.Queue.Enabled = true
	updated.Queue.MaxConcurrent = 4
	updated.Queue.MaxSize = 8
	updated.Processing.Categories["programming"] = config.CategoryConfig{Template: "Write {{.Count}} questions on {{.Topic}}."}
	s.Reload(context.Background(), updated)

	assert.Equal(t, int64(8), s.queue.GetMaxSize())

	resp, _ := postJSON(t, ts.URL+"/generate-programming-questions", `{"topic": "maps", "number": 2, "level": "easy"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Write 2 questions on maps.", gen.Prompts()[0])

	// A broken template is rejected and the previous one stays active.
	broken := testConfig()
	broken.Processing.Categories["programming"] = config.CategoryConfig{Template: "{{.Topic"}
	s.Reload(context.Background(), broken)

	resp, _ = postJSON(t, ts.URL+"/generate-programming-questions", `{"topic": "maps", "number": 2, "level": "easy"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Write 2 questions on maps.", gen.Prompts()[1])
}

// TestServerStart exercises the listener lifecycle: serving, hot reload
// through the watcher, and graceful shutdown on context cancellation.
func TestServerStart(t *testing.T) {
	var templateSeen atomic.Value
	gen := mocks.NewMockGenerator(func(_ context.Context, prompt string) (string, error) {
		templateSeen.Store(prompt)
		return reply, nil
	})
	s, watcher := newTestServer(t, testConfig(), gen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	base := "http://" + s.Addr().String()

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	updated := testConfig()
	updated.Processing.Categories["logical"] = config.CategoryConfig{Template: "reloaded {{.Topic}}"}
	watcher.UpdateConfig(updated)

	require.Eventually(t, func() bool {
		resp, err := http.Post(base+"/generate-logical-questions", "application/json",
			strings.NewReader(`{"topic": "series", "number": 1, "level": "easy"}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK && templateSeen.Load() == "reloaded series"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerStartPortInUse(t *testing.T) {
	gen := mocks.NewStaticGenerator(reply)
	first, _ := newTestServer(t, testConfig(), gen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Start(ctx) }()
	require.Eventually(t, func() bool { return first.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	cfg := testConfig()
	_, port, err := splitPort(first.Addr().String())
	require.NoError(t, err)
	cfg.Server.Port = port
	second, _ := newTestServer(t, cfg, gen)

	err = second.Start(context.Background())
	assert.Error(t, err)
}

func splitPort(addr string) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("no port in %q", addr)
	}
	var port int
	_, err := fmt.Sscanf(addr[i+1:], "%d", &port)
	return addr[:i], port, err
}
