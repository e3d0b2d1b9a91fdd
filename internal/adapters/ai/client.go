package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"hermes/internal/adapters/config"
	"hermes/pkg/errors"
)

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a conversation transcript.
type Message struct {
	Role    MessageRole
	Content string
}

// ChatClient is the narrow contract the inference gateway needs from an
// OpenAI-compatible endpoint.
type ChatClient interface {
	// ListModels returns the identifiers of the models served by the endpoint,
	// in the order the endpoint reports them.
	ListModels(ctx context.Context) ([]string, error)

	// ChatCompletion sends a transcript and returns the first choice's content.
	ChatCompletion(ctx context.Context, model string, messages []Message, temperature float64) (string, error)
}

// Ensure Client implements ChatClient
var _ ChatClient = (*Client)(nil)

// Client talks to an OpenAI-compatible chat completion API (vLLM, OpenAI)
// using the official SDK.
type Client struct {
	api openai.Client
}

// NewClient creates a chat client for the configured endpoint.
func NewClient(cfg config.InferenceConfig) *Client {
	api := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(60*time.Second),
	)
	return &Client{api: api}
}

// ListModels queries the endpoint's model list.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list models")
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// ChatCompletion sends a chat completion request and returns the reply text.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(temperature),
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(errors.ErrInferenceUnavailable, err.Error())
	}

	if len(completion.Choices) == 0 {
		return "", errors.Wrap(errors.ErrInferenceUnavailable, "endpoint returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
