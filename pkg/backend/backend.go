package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/aqueduct/pkg/prompt"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// MaxTokens caps the length of a generated answer.
	MaxTokens = 2000
	// Temperature used for every completion.
	Temperature = 0.7
)

// ErrMissingAPIKey is returned when a provider is selected without credentials.
var ErrMissingAPIKey = errors.New("missing API key")

// ErrEmptyResponse is returned when a backend answers with no choices.
var ErrEmptyResponse = errors.New("empty response")

// Backend produces the raw answer text for a request payload.
type Backend interface {
	Generate(ctx context.Context, payload prompt.RequestPayload) (string, error)
}

// Func adapts a function to the Backend interface.
type Func func(ctx context.Context, payload prompt.RequestPayload) (string, error)

func (f Func) Generate(ctx context.Context, payload prompt.RequestPayload) (string, error) {
	return f(ctx, payload)
}

// Factory constructs the client of one provider. The client serves every
// model of that provider; the model travels in RequestPayload.Model.
type Factory func(ctx context.Context) (Backend, error)

// Chat drives a langchaingo model with the request payload.
type Chat struct {
	llm llms.Model
	// model is used when the payload names none.
	model string
	// system sends the payload's system instruction as a separate message.
	system bool
}

// NewChat wraps llm. defaultModel may be empty. When system is false the
// system instruction is omitted and only the prompt is sent.
func NewChat(llm llms.Model, defaultModel string, system bool) *Chat {
	return &Chat{llm: llm, model: defaultModel, system: system}
}

// Generate sends the payload and returns the content of the first choice.
func (c *Chat) Generate(ctx context.Context, payload prompt.RequestPayload) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if c.system && payload.System != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(payload.System)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(payload.Prompt)},
	})

	opts := []llms.CallOption{
		llms.WithTemperature(Temperature),
		llms.WithMaxTokens(MaxTokens),
	}
	model := payload.Model
	if model == "" {
		model = c.model
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// OpenAI returns a factory for GPT models. baseURL may be empty.
func OpenAI(apiKey, baseURL string) Factory {
	return func(ctx context.Context) (Backend, error) {
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []openai.Option{openai.WithToken(apiKey)}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		return NewChat(client, "", true), nil
	}
}

// Gemini returns a factory for Google Gemini models. Gemini receives the
// prompt alone, without a separate system message.
func Gemini(apiKey string) Factory {
	return func(ctx context.Context) (Backend, error) {
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		client, err := googleai.New(ctx, googleai.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("googleai client: %w", err)
		}
		return NewChat(client, "", false), nil
	}
}
