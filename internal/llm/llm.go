// Package llm talks to chat-completions endpoints through go-openai. Every
// supported provider (OpenAI, Mistral, OpenRouter, local gateways) speaks the
// same protocol, so only the base URL and model differ.
package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/retry"
)

// ErrNoChoices is returned when the provider answered without a message.
var ErrNoChoices = errors.New("llm: response has no choices")

// Completer is the subset of *openai.Client the assistant uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient returns a go-openai client pointed at cfg.BaseURL.
func NewOpenAIClient(cfg config.LLMConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(oc)
}

// Client fills in model defaults and retries transient failures.
type Client struct {
	Completer   Completer
	Model       string
	Temperature float32
	Policy      retry.Policy
}

// NewClient wraps c with the model settings of cfg.
func NewClient(c Completer, cfg config.LLMConfig, p retry.Policy) *Client {
	return &Client{Completer: c, Model: cfg.Model, Temperature: cfg.Temperature, Policy: p}
}

// Complete sends req and returns the first choice's message. op labels the
// call in retry logs and metrics.
func (c *Client) Complete(ctx context.Context, op string, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.Temperature == 0 {
		req.Temperature = c.Temperature
	}
	return retry.Do(ctx, c.Policy, op, func(ctx context.Context) (openai.ChatCompletionMessage, error) {
		resp, err := c.Completer.CreateChatCompletion(ctx, req)
		if err != nil {
			return openai.ChatCompletionMessage{}, Classify(err)
		}
		if len(resp.Choices) == 0 {
			return openai.ChatCompletionMessage{}, retry.Unavailable(ErrNoChoices)
		}
		return resp.Choices[0].Message, nil
	})
}

// Classify maps go-openai errors onto retry classifications. Errors that
// carry no HTTP status (dial failures, resets) are treated as unavailable.
func Classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retry.FromHTTP(apiErr.HTTPStatusCode, "", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retry.FromHTTP(reqErr.HTTPStatusCode, "", err)
	}
	return retry.Unavailable(err)
}
