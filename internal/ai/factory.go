package ai

import (
	"context"
	"fmt"

	"humana-api/internal/config"
	"humana-api/internal/telemetry"
)

// NewCompleter builds the completion client for cfg.LLMProvider. It returns
// ErrNotConfigured when the provider has no API key.
func NewCompleter(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Completer, error) {
	guard := NewGuard(cfg.LLMProvider+"-completion", cfg.LLMRequestsPerMin, metrics)
	switch cfg.LLMProvider {
	case config.ProviderOpenAI, config.ProviderMistral:
		c, err := NewOpenAICompleter(cfg.LLMProvider, cfg.APIKeyFor(cfg.LLMProvider), cfg.BaseURLFor(cfg.LLMProvider), cfg.ChatModel, guard, metrics)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderGoogle:
		c, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.ChatModel, guard, metrics)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown completion provider %q", cfg.LLMProvider)
}

// NewEmbedder builds the embedding client for cfg.EmbeddingsProvider.
func NewEmbedder(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Embedder, error) {
	guard := NewGuard(cfg.EmbeddingsProvider+"-embeddings", cfg.LLMRequestsPerMin, metrics)
	switch cfg.EmbeddingsProvider {
	case config.ProviderOpenAI, config.ProviderMistral:
		e, err := NewOpenAIEmbedder(cfg.EmbeddingsProvider, cfg.APIKeyFor(cfg.EmbeddingsProvider), cfg.BaseURLFor(cfg.EmbeddingsProvider), cfg.EmbeddingModel, guard)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.ProviderGoogle:
		e, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, guard)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, fmt.Errorf("unknown embeddings provider %q", cfg.EmbeddingsProvider)
}

// NewSpeechFromConfig builds the speech passthrough. Speech always uses OpenAI.
func NewSpeechFromConfig(cfg *config.Config, metrics *telemetry.Metrics) (*Speech, error) {
	guard := NewGuard("openai-speech", cfg.LLMRequestsPerMin, metrics)
	return NewSpeech(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.STTModel, cfg.TTSModel, cfg.TTSVoice, guard)
}
