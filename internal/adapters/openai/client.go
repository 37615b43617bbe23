// Package openai is a minimal chat-completions client used for sentiment
// classification and reply drafting.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/domain"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
)

var ErrEmptyCompletion = errors.New("openai: completion had no choices")

type Client struct {
	rc    *resty.Client
	key   string
	model string
	rl    *rate.Limiter
}

func New(baseURL, key, model string, rps int, timeout time.Duration) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if rps <= 0 {
		rps = 2
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(4 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{rc: rc, key: key, model: model, rl: rate.NewLimiter(rate.Limit(rps), rps)}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements domain.TextGenerator.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	body := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	var out chatResponse
	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(c.key).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	observability.ObserveExternal("openai", "chat.completions", status, time.Since(start))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("openai %d: %s", status, out.Error.Message)
		}
		return "", fmt.Errorf("openai %d: %s", status, strings.TrimSpace(resp.String()))
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
