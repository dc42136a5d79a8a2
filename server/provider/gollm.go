package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"

	"github.com/GokulKGit/quiz-API/config"
)

// Gollm adapts any provider supported by gollm (anthropic, ollama, groq,
// mistral, ...).
type Gollm struct {
	name   string
	llm    gollm.LLM
	system string
}

func NewGollm(name string, pc config.ProviderConfig, llmCfg config.LLMConfig) (*Gollm, error) {
	llm, err := gollm.NewLLM(
		gollm.SetProvider(pc.Type),
		gollm.SetModel(pc.Model),
		gollm.SetAPIKey(pc.APIKey),
		gollm.SetTemperature(float64(llmCfg.Generation.Temperature)),
		gollm.SetMaxTokens(llmCfg.Generation.MaxOutputTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", name, err)
	}
	return NewGollmWithLLM(name, llm, llmCfg.SystemPrompt), nil
}

// NewGollmWithLLM wraps an existing gollm.LLM.
func NewGollmWithLLM(name string, llm gollm.LLM, system string) *Gollm {
	return &Gollm{name: name, llm: llm, system: system}
}

func (g *Gollm) Name() string { return g.name }

func (g *Gollm) Generate(ctx context.Context, prompt string) (string, error) {
	var messages []gollm.PromptMessage
	if g.system != "" {
		messages = append(messages, gollm.PromptMessage{Role: "system", Content: g.system})
	}
	messages = append(messages, gollm.PromptMessage{Role: "user", Content: prompt})

	return g.llm.Generate(ctx, &gollm.Prompt{Messages: messages})
}
