// Package ai wraps the text-completion providers used for health narratives
// and the caregiver chat. Callers depend on Completer only.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/careconnect/internal/common"
)

// Completer produces a completion for prompt under the given system persona.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ErrDisabled is returned by Noop.
var ErrDisabled = errors.New("ai provider disabled")

// Noop is the Completer used when no provider is configured.
type Noop struct{}

func (Noop) Complete(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

// Options selects and configures a provider.
type Options struct {
	Provider string // "none", "gemini" or "openai"
	APIKey   string
	Model    string
	BaseURL  string // openai only; empty means the public API
}

// New builds the configured Completer. The returned io.Closer releases the
// provider client and is never nil.
func New(ctx context.Context, o Options) (Completer, io.Closer, error) {
	switch o.Provider {
	case "", "none":
		return Noop{}, io.NopCloser(nil), nil
	case "gemini":
		c, err := NewGeminiClient(ctx, o.APIKey, o.Model)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case "openai":
		c, err := NewOpenAIClient(o.APIKey, o.Model, o.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		return c, io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown AI provider %q", common.ErrConfig, o.Provider)
	}
}
