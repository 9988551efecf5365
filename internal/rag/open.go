package rag

import (
	"context"

	"humana-api/internal/config"
	"humana-api/internal/telemetry"
)

// Open builds the store selected by cfg.RAGStore. It returns a nil Store
// when retrieval is disabled. Connections are established lazily, so an
// unreachable database does not fail startup.
func Open(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Store, error) {
	switch cfg.RAGStore {
	case config.StorePostgres:
		pool, err := config.NewPostgresPool(cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool, cfg.RAGCollection, cfg.VectorDimensions, metrics), nil
	case config.StoreMongo:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewMongoStore(client.Database(cfg.DBName), cfg.RAGCollection, cfg.VectorDimensions,
			cfg.VectorSearchEnabled, cfg.VectorIndexName, metrics), nil
	case config.StoreSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath, cfg.VectorDimensions, metrics)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, nil
}
