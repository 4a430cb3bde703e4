package provider

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(s Settings) (Provider, error) {
	if err := requireKey(s); err != nil {
		return nil, err
	}
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	model := s.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Translate(ctx context.Context, text, prompt string, glossary map[string]string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if sys := SystemInstruction(prompt, glossary); sys != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", newError(o.Name(), err, "API error")
	}
	if len(resp.Choices) == 0 {
		return "", newError(o.Name(), nil, "no translation returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
