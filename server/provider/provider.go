// Package provider implements the generation backends and the manager that
// selects between them. Each backend turns a single prompt into the model's
// text reply; the manager adds failover, circuit breaking and optional
// deduplication of identical in-flight prompts.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/GokulKGit/quiz-API/config"
)

// Generator is one configured generation backend.
type Generator interface {
	// Name returns the configured provider name.
	Name() string

	// Generate sends prompt to the model and returns its text reply.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider types with a dedicated client. Any other type is handed to gollm,
// which covers anthropic, ollama, groq and mistral among others.
const (
	TypeGemini     = "gemini"
	TypeOpenAI     = "openai"
	TypeOpenRouter = "openrouter"
)

// New creates the backend described by pc. Sampling and safety settings come from
// llm and apply to every backend that supports them.
func New(ctx context.Context, name string, pc config.ProviderConfig, llm config.LLMConfig) (Generator, error) {
	if pc.Model == "" {
		return nil, fmt.Errorf("provider %s: model is required", name)
	}

	switch strings.ToLower(pc.Type) {
	case TypeGemini:
		return NewGemini(ctx, name, pc, llm)
	case TypeOpenAI:
		return NewOpenAI(name, pc, llm)
	case TypeOpenRouter:
		return NewOpenRouter(name, pc, llm)
	default:
		return NewGollm(name, pc, llm)
	}
}
