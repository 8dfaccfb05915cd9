// Package classifier sends candidate posts to an OpenAI-compatible chat
// completions endpoint and decodes the verdict defensively.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"social_monitor/internal/model"
)

// DefaultTimeout bounds a single classification call.
const DefaultTimeout = 20 * time.Second

const temperature = 0.2

// Client classifies posts through a provider's chat-completions API.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	log        *slog.Logger
}

// New creates a Client. A nil httpClient selects http.DefaultClient and a
// non-positive timeout selects DefaultTimeout.
func New(httpClient *http.Client, timeout time.Duration, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{httpClient: httpClient, timeout: timeout, log: log}
}

// Classify returns the verdict for one post. It never fails: without a
// provider the verdict is Pending, and any transport, status or decoding
// problem yields Failed.
func (c *Client) Classify(ctx context.Context, p *model.AIProvider, keyword, url, text string) Verdict {
	if p == nil {
		return Pending
	}

	content, err := c.complete(ctx, p, BuildPrompt(keyword, url, text))
	if err != nil {
		c.log.Error("classification request failed", "provider", *p, "error", err)
		return Failed
	}

	v, err := Decode(content)
	if err != nil {
		c.log.Warn("classification output not parseable", "provider", *p, "error", err)
		return Failed
	}
	return v
}

// Ping sends a short greeting through the provider and returns the reply.
// It is used to verify provider settings.
func (c *Client) Ping(ctx context.Context, p *model.AIProvider) (string, error) {
	if p == nil {
		return "", errors.New("no provider")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.sdk(p)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(modelFor(p)),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage("Say Hello!")},
		MaxTokens: openai.Int(20),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) complete(ctx context.Context, p *model.AIProvider, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := c.sdk(p)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelFor(p)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) sdk(p *model.AIProvider) openai.Client {
	endpoint := ResolveEndpoint(p.BaseURL, p.Type, p.APIKey)
	return openai.NewClient(
		option.WithAPIKey(p.APIKey),
		option.WithBaseURL(sdkBaseURL(endpoint)),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	)
}

func modelFor(p *model.AIProvider) string {
	if p.Model != "" {
		return p.Model
	}
	return DefaultModel(p.Type, p.APIKey)
}
