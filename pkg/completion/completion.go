// Package completion forwards unclassified questions to an external
// text-completion service.
package completion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spindleai/spindle/pkg/config"
)

// SystemPrompt is sent with every fallback request.
const SystemPrompt = "You are a helpful assistant that answers questions about networks."

const (
	// Temperature and MaxTokens are fixed for every fallback request.
	Temperature = 0.7
	MaxTokens   = 200

	// NoResponseMessage is relayed when the endpoint answers without text.
	NoResponseMessage = "[No response]"
)

// ErrNoCompletion means the endpoint answered but carried no completion text.
var ErrNoCompletion = errors.New("no completion in response")

// Completer sends one prompt and returns the first completion's text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds the Completer for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewHTTPClient(cfg.URL, cfg.Model, cfg.APIKey, cfg.Timeout), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, &config.ConfigurationError{Field: "llm.provider", Reason: fmt.Sprintf("unsupported provider %q", cfg.Provider)}
	}
}

// Fallback relays completions and converts every failure into reply text.
type Fallback struct {
	completer Completer
	logger    *zap.Logger
}

// NewFallback wraps c. A nil c makes every answer an error message.
func NewFallback(c Completer, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{completer: c, logger: logger}
}

// Answer returns the completion for prompt. The second result is the failure,
// if any, already folded into the returned text.
func (f *Fallback) Answer(ctx context.Context, prompt string) (string, error) {
	if f.completer == nil {
		err := errors.New("completion endpoint not configured")
		return ErrorMessage(err), err
	}

	text, err := f.completer.Complete(ctx, prompt)
	switch {
	case errors.Is(err, ErrNoCompletion):
		f.logger.Warn("completion endpoint returned no text")
		return NoResponseMessage, err
	case err != nil:
		f.logger.Error("completion request failed", zap.Error(err))
		return ErrorMessage(err), err
	}
	return text, nil
}

// ErrorMessage renders err as user-visible reply text.
func ErrorMessage(err error) string {
	return fmt.Sprintf("[Error: %v]", err)
}
