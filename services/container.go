package services

import (
	"context"
	"errors"
	"io"
	"time"

	"humana-api/internal/ai"
	"humana-api/internal/auth"
	"humana-api/internal/config"
	"humana-api/internal/logger"
	"humana-api/internal/queue"
	"humana-api/internal/rag"
	"humana-api/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

// Container holds every long-lived dependency of the API. Optional pieces
// are nil when their configuration is absent.
type Container struct {
	Config   *config.Config
	Metrics  *telemetry.Metrics
	Verifier auth.Verifier
	Redis    *redis.Client

	Chat   *ChatService
	Ingest *IngestService
	Speech *SpeechService
	Probe  *StoreProbe

	store    rag.Store
	enqueuer *queue.Enqueuer
	clients  []io.Closer
}

// NewContainer fails only on identity-provider or malformed settings.
// Missing model keys, an unset store and an absent Redis degrade the
// matching endpoints instead.
func NewContainer(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Container, error) {
	verifier, err := auth.NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Metrics: metrics, Verifier: verifier}

	var completer ai.Completer
	if cm, err := ai.NewCompleter(ctx, cfg, metrics); err == nil {
		completer = cm
		c.track(cm)
	} else if !errors.Is(err, ai.ErrNotConfigured) {
		return nil, err
	} else {
		logger.Warn("Completion provider not configured", "provider", cfg.LLMProvider)
	}

	var embedder ai.Embedder
	if em, err := ai.NewEmbedder(ctx, cfg, metrics); err == nil {
		embedder = em
		c.track(em)
	} else if !errors.Is(err, ai.ErrNotConfigured) {
		return nil, err
	} else {
		logger.Warn("Embeddings provider not configured, retrieval disabled", "provider", cfg.EmbeddingsProvider)
	}

	store, err := rag.Open(ctx, cfg, metrics)
	if err != nil {
		// Retrieval is optional; chat keeps working without context.
		logger.Warn("Retrieval store unavailable", "store", cfg.RAGStore, "error", err)
		store = nil
	}
	c.store = store

	var retriever ContextRetriever
	if store != nil && embedder != nil {
		retriever = rag.NewRetriever(embedder, store, cfg.RAGTopK, cfg.RetrievalTimeout, metrics)
	}

	options := ai.CompletionOptions{Model: cfg.ChatModel, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	c.Chat = NewChatService(completer, cfg.LLMProvider, retriever, options, cfg.CompletionTimeout)

	var enqueuer TaskEnqueuer
	if cfg.RedisURL != "" {
		if rdb, err := config.NewRedisClient(cfg); err != nil {
			logger.Warn("Redis unavailable, rate limiting and async ingestion disabled", "error", err)
		} else {
			c.Redis = rdb
			opt, err := queue.RedisConnOpt(cfg)
			if err != nil {
				return nil, err
			}
			c.enqueuer = queue.NewEnqueuer(opt)
			enqueuer = c.enqueuer
		}
	}

	c.Ingest = NewIngestService(embedder, store, enqueuer, IngestConfig{
		EmbeddingsProvider: cfg.EmbeddingsProvider,
		EmbeddingTimeout:   cfg.EmbeddingTimeout,
		VectorDimensions:   cfg.VectorDimensions,
		MaxChunkSize:       cfg.MaxChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		MaxPDFSize:         cfg.MaxBodySize,
	}, metrics)

	var speechClient SpeechClient
	if sp, err := ai.NewSpeechFromConfig(cfg, metrics); err == nil {
		speechClient = sp
	} else {
		logger.Warn("Speech endpoints disabled", "error", err)
	}
	c.Speech = NewSpeechService(speechClient, cfg.SpeechTimeout)

	c.Probe = NewStoreProbe(store, 5*time.Second)
	return c, nil
}

// track registers a provider client that holds connections of its own.
func (c *Container) track(client interface{}) {
	if closer, ok := client.(io.Closer); ok {
		c.clients = append(c.clients, closer)
	}
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() {
	if c.Probe != nil {
		c.Probe.Stop()
	}
	if c.enqueuer != nil {
		if err := c.enqueuer.Close(); err != nil {
			logger.Warn("Failed to close task queue client", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Warn("Failed to close Redis client", "error", err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			logger.Warn("Failed to close retrieval store", "error", err)
		}
	}
	for i := len(c.clients) - 1; i >= 0; i-- {
		if err := c.clients[i].Close(); err != nil {
			logger.Warn("Failed to close provider client", "error", err)
		}
	}
	c.clients = nil
}
