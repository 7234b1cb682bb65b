package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// ErrNoKey is returned when the Anthropic API key is not configured.
var ErrNoKey = errors.New("genai: anthropic API key not set")

type promptFunc func(system, user string, settings types.RequestSettings) (string, error)

// Anthropic completes prompts with Claude through llmkit. The Model field of
// a Request is replaced by the configured model when set.
type Anthropic struct {
	model  string
	prompt promptFunc
}

// NewAnthropic creates an Anthropic completer. An empty model keeps the one
// carried by each Request.
func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		model: model,
		prompt: func(system, user string, settings types.RequestSettings) (string, error) {
			if apiKey == "" {
				return "", ErrNoKey
			}
			response, err := anthropic.PromptWithSettings(system, user, "", apiKey, settings)
			if err != nil {
				return "", err
			}
			if len(response.Content) == 0 {
				return "", nil
			}
			return response.Content[0].Text, nil
		},
	}
}

type result struct {
	text string
	err  error
}

// Complete runs the prompt. llmkit has no context support, so cancellation
// abandons the call rather than aborting it.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	settings := types.RequestSettings{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if a.model != "" {
		settings.Model = a.model
	}

	done := make(chan result, 1)
	go func() {
		text, err := a.prompt(req.System, req.User, settings)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("anthropic prompt: %w", r.err)
		}
		if r.text == "" {
			return NoResponse, nil
		}
		return StripReasoning(r.text), nil
	}
}
