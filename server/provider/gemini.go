package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/GokulKGit/quiz-API/config"
)

// Gemini generates replies with the Google Gemini API.
type Gemini struct {
	name   string
	model  string
	client *genai.Client
	config *genai.GenerateContentConfig
}

// NewGemini opens a Gemini API client for the configured provider.
func NewGemini(ctx context.Context, name string, pc config.ProviderConfig, llm config.LLMConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  pc.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if pc.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: pc.Endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		name:   name,
		model:  pc.Model,
		client: client,
		config: GenerateContentConfig(llm),
	}, nil
}

// GenerateContentConfig maps the sampling and safety settings onto the
// Gemini request config.
func GenerateContentConfig(llm config.LLMConfig) *genai.GenerateContentConfig {
	gen := llm.Generation
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(gen.Temperature),
		TopP:            genai.Ptr(gen.TopP),
		TopK:            genai.Ptr(float32(gen.TopK)),
		MaxOutputTokens: int32(gen.MaxOutputTokens),
	}
	for _, s := range llm.SafetySettings {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	if llm.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(llm.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

func (g *Gemini) Name() string { return g.name }

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  genai.RoleUser,
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
