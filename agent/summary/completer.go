package summary

import (
	"context"
	"errors"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

// Completer is the text summarization capability: one prompt in, one completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type OpenAICompleter struct {
	client      *openaisdk.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAICompleter(client *openaisdk.Client, model string, temperature float32, maxTokens int) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", errors.New("summary client is not configured")
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(float64(c.temperature)),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summary completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
