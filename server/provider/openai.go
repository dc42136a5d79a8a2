package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/GokulKGit/quiz-API/config"
)

// OpenAI generates replies with the OpenAI chat completions API. Endpoint
// may point at any compatible server.
type OpenAI struct {
	name   string
	model  string
	client *openai.Client
	llm    config.LLMConfig
}

func NewOpenAI(name string, pc config.ProviderConfig, llm config.LLMConfig) (*OpenAI, error) {
	opts := []option.RequestOption{option.WithAPIKey(pc.APIKey)}
	if pc.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(pc.Endpoint))
	}
	return &OpenAI{
		name:   name,
		model:  pc.Model,
		client: openai.NewClient(opts...),
		llm:    llm,
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if o.llm.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(o.llm.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(msgs),
		Model:       openai.F(openai.ChatModel(o.model)),
		Temperature: openai.F(float64(o.llm.Generation.Temperature)),
		TopP:        openai.F(float64(o.llm.Generation.TopP)),
	}
	if n := o.llm.Generation.MaxOutputTokens; n > 0 {
		params.MaxCompletionTokens = openai.F(int64(n))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
