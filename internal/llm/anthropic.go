package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient calls the Messages API through the official SDK.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropicClient creates a client for the given key and default model.
// Retries are disabled; every stage makes a single attempt and falls back.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, logger *slog.Logger) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
			option.WithMaxRetries(0),
		),
		model:  model,
		logger: logger,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	req = req.withDefaults(c.model)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.logger.Warn("anthropic call failed", "model", req.Model, "error", err)
		return Response{}, fmt.Errorf("anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			c.logger.Debug("anthropic response", "size", len(block.Text), "tokens_in", usage.InputTokens, "tokens_out", usage.OutputTokens)
			return Response{Text: block.Text, Usage: usage}, nil
		}
	}
	return Response{Usage: usage}, ErrEmptyResponse
}
