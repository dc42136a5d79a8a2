package provider

import (
	"context"
	"fmt"

	"github.com/revrost/go-openrouter"

	"github.com/GokulKGit/quiz-API/config"
)

// OpenRouter generates replies through the OpenRouter gateway. The
// gateway applies each model's own sampling defaults.
type OpenRouter struct {
	name   string
	model  string
	client *openrouter.Client
	llm    config.LLMConfig
}

func NewOpenRouter(name string, pc config.ProviderConfig, llm config.LLMConfig) (*OpenRouter, error) {
	return &OpenRouter{
		name:   name,
		model:  pc.Model,
		client: openrouter.NewClient(pc.APIKey),
		llm:    llm,
	}, nil
}

func (o *OpenRouter) Name() string { return o.name }

func (o *OpenRouter) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]openrouter.ChatCompletionMessage, 0, 2)
	if o.llm.SystemPrompt != "" {
		messages = append(messages, openrouter.ChatCompletionMessage{
			Role:    openrouter.ChatMessageRoleSystem,
			Content: openrouter.Content{Text: o.llm.SystemPrompt},
		})
	}
	messages = append(messages, openrouter.ChatCompletionMessage{
		Role:    openrouter.ChatMessageRoleUser,
		Content: openrouter.Content{Text: prompt},
	})

	resp, err := o.client.CreateChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content.Text, nil
}
