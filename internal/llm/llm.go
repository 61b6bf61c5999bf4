// Package llm wraps the chat completion endpoints used by the bot personas.
// xAI and Gemini both expose OpenAI-compatible APIs, so one SDK serves both.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	XAIBaseURL    = "https://api.x.ai/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

var ErrEmptyCompletion = errors.New("empty completion")

// ChatClient abstracts the OpenAI chat completions API for testability.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openaiClient struct {
	client openai.Client
}

// NewChatClient returns a client for an OpenAI-compatible endpoint.
func NewChatClient(apiKey, baseURL string) ChatClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openaiClient{client: openai.NewClient(opts...)}
}

func (c *openaiClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// Completer sends one system+user exchange and returns the reply text.
type Completer struct {
	tracer trace.Tracer
	client ChatClient
	model  string
}

func NewCompleter(tracer trace.Tracer, client ChatClient, model string) *Completer {
	return &Completer{tracer: tracer, client: client, model: model}
}

func (c *Completer) Model() string { return c.model }

func (c *Completer) Complete(ctx context.Context, system, prompt string, maxTokens int, temperature float64) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.max_tokens", maxTokens),
	)

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := c.client.CreateChatCompletion(ctx, params)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyCompletion
	}
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}
