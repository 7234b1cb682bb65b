// Package genai generates social media post text with a language model.
package genai

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
)

// NoResponse is returned as post text when the model answered without any
// usable content.
const NoResponse = "[No response from model]"

// ErrNoURL is returned when the local model endpoint is not configured.
var ErrNoURL = errors.New("genai: local model API URL not set")

// Message is a chat message in the OpenAI-compatible format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call.
type Request struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Local talks to an OpenAI-compatible chat completions endpoint, such as a
// model served by LM Studio or llama.cpp.
type Local struct {
	url        string
	httpClient *http.Client
}

// NewLocal creates a Local client posting to apiURL. The timeout bounds a
// whole request including reading the reply.
func NewLocal(apiURL string, timeout time.Duration) *Local {
	return &Local{
		url:        strings.TrimSpace(apiURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Result string `json:"result"`
	Text   string `json:"text"`
}

// Complete sends req and returns the post text from the reply.
func (c *Local) Complete(ctx context.Context, req Request) (string, error) {
	if c.url == "" {
		return "", ErrNoURL
	}

	body, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return replyText(cr), nil
}

func replyText(cr chatResponse) string {
	if len(cr.Choices) > 0 {
		return StripReasoning(cr.Choices[0].Message.Content)
	}
	if cr.Result != "" {
		return cr.Result
	}
	if cr.Text != "" {
		return cr.Text
	}
	return NoResponse
}

// StripReasoning drops a leading reasoning block ending in </think>. The
// whole trimmed content is kept when nothing follows the tag.
func StripReasoning(content string) string {
	content = strings.TrimSpace(content)
	if _, after, ok := strings.Cut(content, "</think>"); ok {
		if post := strings.TrimSpace(after); post != "" {
			return post
		}
	}
	return content
}
