package ai

import (
	"context"
	"errors"
	"fmt"

	"humana-api/models"
)

// ErrNotConfigured means the provider has no credentials. Callers answer
// 503 instead of attempting the call.
var ErrNotConfigured = errors.New("provider not configured")

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("no embedding returned")

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
)

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Completer sends a conversation to a language model and returns the text
// of its first choice.
type Completer interface {
	Complete(ctx context.Context, turns []models.ChatTurn, opts CompletionOptions) (string, error)
	Provider() string
}

type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// normalized fills defaults and clamps temperature into [0,1].
func (o CompletionOptions) normalized(defaultModel string) CompletionOptions {
	if o.Model == "" {
		o.Model = defaultModel
	}
	switch {
	case o.Temperature < 0:
		o.Temperature = 0
	case o.Temperature > 1:
		o.Temperature = 1
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// DefaultCompletionOptions returns the options used when a caller has no
// preference of its own.
func DefaultCompletionOptions(model string) CompletionOptions {
	return CompletionOptions{Model: model, Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// ProviderError carries the provider's own failure text, which is safe to
// surface to clients.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s request failed", e.Provider)
}

func (e *ProviderError) Unwrap() error { return e.Err }
