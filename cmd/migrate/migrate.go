package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"humana-api/internal/config"
	"humana-api/internal/logger"
	"humana-api/internal/rag"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  schema  - Create the document table or collection and its indexes")
		fmt.Println("  verify  - Check connectivity and report the document count")
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := rag.Open(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if store == nil {
		log.Fatal("RAG_STORE is not configured; nothing to migrate")
	}
	defer store.Close()

	switch command {
	case "schema":
		if err := migrateSchema(ctx, store); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		logger.Info("Schema ready", "backend", store.Backend(), "collection", cfg.RAGCollection, "dimensions", cfg.VectorDimensions)
	case "verify":
		if err := store.Ping(ctx); err != nil {
			log.Fatalf("Store unreachable: %v", err)
		}
		n, err := store.Count(ctx)
		if err != nil {
			log.Fatalf("Count failed: %v", err)
		}
		logger.Info("Store verified", "backend", store.Backend(), "documents", n)
	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func migrateSchema(ctx context.Context, store rag.Store) error {
	switch s := store.(type) {
	case *rag.PostgresStore:
		return s.Migrate(ctx)
	case *rag.MongoStore:
		return s.EnsureIndexes(ctx)
	default:
		// SQLite creates its schema when opened.
		return nil
	}
}
