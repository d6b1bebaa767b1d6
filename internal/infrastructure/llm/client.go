package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/config"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

// Client implements ports.ChatCompleter against any OpenAI-compatible
// chat-completion endpoint.
type Client struct {
	client    openai.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

var _ ports.ChatCompleter = (*Client)(nil)

// New builds a client from analyzer configuration. APIBase overrides the
// endpoint for self-hosted or proxy backends.
func New(cfg config.AnalyzerConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: 1024,
		timeout:   timeout,
	}
}

// Complete sends the conversation and returns the generated text. API
// failures carrying an HTTP status are reported as resilience.StatusError so
// the caller's retry policy can classify them.
func (c *Client) Complete(ctx context.Context, msgs []ports.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            convertMessages(msgs),
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(0.7),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: %w", &resilience.StatusError{Code: apiErr.StatusCode})
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

func convertMessages(msgs []ports.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
