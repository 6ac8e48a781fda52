package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// Client implements app.ModelClient on the OpenAI chat completion API.
//
// The underlying SDK client is created lazily exactly once per process and
// reused: reconnecting per request is wasted work, and a short-lived client
// torn down while the SDK retries internally is a known failure mode.
type Client struct {
	apiKey string
	model  string
	log    *zap.SugaredLogger

	once   sync.Once
	sdk    *openai.Client
	sdkErr error
	mu     sync.Mutex
}

func NewClient(apiKey, model string, log *zap.SugaredLogger) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{apiKey: apiKey, model: model, log: log}
}

func (c *Client) client() (*openai.Client, error) {
	c.once.Do(func() {
		if c.apiKey == "" {
			c.sdkErr = fmt.Errorf("%w: API key is missing", domain.ErrModelRequestFailed)
			return
		}
		c.sdk = openai.NewClient(c.apiKey)
	})
	return c.sdk, c.sdkErr
}

// Reset drops the cached SDK client so the next call recreates it. Test hook.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.once = sync.Once{}
	c.sdk = nil
	c.sdkErr = nil
}

// Complete sends one prompt and returns the raw response text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	sdk, err := c.client()
	if err != nil {
		return "", err
	}

	resp, err := sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// mapError keeps vendor rate-limit responses distinguishable from every
// other failure so callers can apply their own backoff instead of retrying
// into a worsening condition.
func (c *Client) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			c.log.Warnw("model quota or rate limit hit", "status", apiErr.HTTPStatusCode)
			return fmt.Errorf("%w: try again later", domain.ErrQuotaExceeded)
		}
		return fmt.Errorf("%w: HTTP %d", domain.ErrModelRequestFailed, apiErr.HTTPStatusCode)
	}
	c.log.Errorw("model request failed", "error", err)
	return fmt.Errorf("%w: %v", domain.ErrModelRequestFailed, err)
}
