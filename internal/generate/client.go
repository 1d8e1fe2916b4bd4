package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/heymitch/ai-content-agent-beta-sub000/internal/config"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/logging"
	"github.com/heymitch/ai-content-agent-beta-sub000/internal/telemetry"
)

// ErrRateLimited is returned when the limiter rejects an LLM call; the queue
// treats it like any other transient failure.
var ErrRateLimited = errors.New("llm call rate limited")

// Limiter gates outbound LLM calls per platform.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
	limiter    Limiter
	log        *logging.Logger
}

// NewClient builds a client from configuration. The limiter may be nil.
func NewClient(cfg config.Config, limiter Limiter, log *logging.Logger) *Client {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	maxRetries := cfg.LLMMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.LLMBaseURL, "/"),
		apiKey:     cfg.LLMAPIKey,
		model:      cfg.LLMModel,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		log:        log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the model's text.
// limitKey scopes the rate limiter (typically the platform tag). Wire-level
// retries use a short doubling backoff; that is separate from the queue's
// constant-delay job retries.
func (c *Client) Complete(ctx context.Context, limitKey, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("llm client misconfigured: missing api key")
	}
	if c.limiter != nil {
		allowed, err := c.limiter.Allow(ctx, limitKey)
		if err != nil {
			c.log.Warn("rate limiter unavailable, allowing call", "error", err)
		} else if !allowed {
			telemetry.RateLimitRejects.Inc()
			return "", ErrRateLimited
		}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		text, retryable, err := c.send(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		c.log.Debug("llm call retrying", "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) send(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return "", retryable, fmt.Errorf("llm api %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", true, fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("llm api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", true, errors.New("llm response had no choices")
	}
	return out.Choices[0].Message.Content, false, nil
}
