package main

import (
	"context"
	"errors"
	"log"

	"humana-api/internal/ai"
	"humana-api/internal/config"
	"humana-api/internal/logger"
	"humana-api/internal/queue"
	"humana-api/internal/rag"
	"humana-api/internal/telemetry"
	"humana-api/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Embeddings provider required by worker:", err)
	}
	store, err := rag.Open(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to open retrieval store:", err)
	}
	if store == nil {
		log.Fatal("RAG_STORE must be set for the ingestion worker")
	}
	defer store.Close()

	ingest := services.NewIngestService(embedder, store, nil, services.IngestConfig{
		EmbeddingsProvider: cfg.EmbeddingsProvider,
		EmbeddingTimeout:   cfg.EmbeddingTimeout,
		VectorDimensions:   cfg.VectorDimensions,
		MaxChunkSize:       cfg.MaxChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		MaxPDFSize:         cfg.MaxBodySize,
	}, metrics)

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Redis required by worker:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queue.QueueIngest: 1,
			},
			IsFailure: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
			}),
		},
	)

	mux := queue.NewServeMux(queue.NewTaskProcessor(ingest))

	logger.Info("Starting ingestion worker", "queue", queue.QueueIngest, "redis", redisOpt.Addr, "store", store.Backend())
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
