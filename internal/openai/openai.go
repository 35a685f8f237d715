package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/osoriodev/coursebot/internal/chat"
)

// Client is a minimal OpenAI-compatible chat completions client.
type Client struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

// NewClient creates a chat completions client bound to the given endpoint.
func NewClient(apiKey, url, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey: apiKey,
		url:    url,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatCompletion sends a chat completion request and returns the first
// choice's content verbatim. Failures come back as categorized
// chat.ProviderError values.
func (c *Client) ChatCompletion(ctx context.Context, messages []chat.Message, temperature float32) (chat.Completion, error) {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: m.Role, Content: m.Content})
	}
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    wire,
		Temperature: temperature,
	})
	if err != nil {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryMalformed,
			Err:      fmt.Errorf("marshal completion request: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryMalformed,
			Err:      fmt.Errorf("create completion request: %w", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryNetwork,
			Err:      fmt.Errorf("completion request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryNetwork,
			Err:      fmt.Errorf("read completion response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chat.Completion{}, &chat.ProviderError{
			Category: categorizeStatus(resp.StatusCode),
			Err:      fmt.Errorf("non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryMalformed,
			Err:      fmt.Errorf("parse completion response: %s", truncate(string(body), 400)),
		}
	}

	result := chat.Completion{}
	if parsed.Usage != nil {
		result.InputTokens = parsed.Usage.PromptTokens
		result.OutputTokens = parsed.Usage.CompletionTokens
	}

	if len(parsed.Choices) == 0 {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryMalformed,
			Err:      fmt.Errorf("completion response has no choices"),
		}
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return chat.Completion{}, &chat.ProviderError{
			Category: chat.CategoryMalformed,
			Err:      fmt.Errorf("completion response has empty content"),
		}
	}
	result.Content = content
	return result, nil
}

func categorizeStatus(status int) chat.ErrorCategory {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return chat.CategoryAuth
	case status == http.StatusTooManyRequests:
		return chat.CategoryRateLimit
	case status >= 500:
		return chat.CategoryNetwork
	default:
		return chat.CategoryMalformed
	}
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
