package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"humana-api/internal/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// candidateFactor widens the index scan so rows tied at the cut-off still
// reach the tie-break.
const candidateFactor = 2

// PostgresStore keeps documents in a pgvector table. One pool is shared by
// the whole process.
type PostgresStore struct {
	pool    *pgxpool.Pool
	table   string
	dims    int
	metrics *telemetry.Metrics
}

func NewPostgresStore(pool *pgxpool.Pool, table string, dims int, metrics *telemetry.Metrics) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		table:   pgx.Identifier{table}.Sanitize(),
		dims:    dims,
		metrics: metrics,
	}
}

func (s *PostgresStore) Backend() string { return "postgres" }

// Migrate creates the vector extension, the documents table and its HNSW
// cosine index. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	index := pgx.Identifier{tableName(s.table) + "_embedding_idx"}.Sanitize()
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			doc_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table, s.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, index, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, doc Document) (err error) {
	if err := validateDocument(doc, s.dims); err != nil {
		return err
	}
	ctx, span := otel.Tracer("humana-api/rag").Start(ctx, "rag.postgres.upsert")
	defer span.End()
	defer func() { s.metrics.RecordStoreOperation("upsert", s.Backend(), err == nil) }()

	metadata, err := json.Marshal(toStored(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (doc_id, content, metadata, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (doc_id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`, s.table), doc.ID, doc.Content, metadata, pgvector.NewVector(doc.Embedding))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, limit int) (results []Result, err error) {
	if err := checkDimensions(embedding, s.dims); err != nil {
		return nil, err
	}
	ctx, span := otel.Tracer("humana-api/rag").Start(ctx, "rag.postgres.query")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.limit", limit))
	defer func() { s.metrics.RecordStoreOperation("query", s.Backend(), err == nil) }()

	// The inner scan orders by distance alone so the HNSW index can serve it;
	// ties are broken over the small candidate set.
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT doc_id, content, metadata, updated_at, distance
		FROM (
			SELECT doc_id, content, metadata, updated_at, embedding <=> $1 AS distance
			FROM %s
			WHERE embedding IS NOT NULL
			ORDER BY embedding <=> $1
			LIMIT $3
		) candidates
		ORDER BY distance, updated_at DESC, doc_id
		LIMIT $2
	`, s.table), pgvector.NewVector(embedding), limit, limit*candidateFactor)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	results = []Result{}
	for rows.Next() {
		var (
			r        Result
			raw      []byte
			updated  time.Time
			metadata storedMetadata
		)
		if err := rows.Scan(&r.ID, &r.Content, &raw, &updated, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
			}
		}
		r.Metadata = metadata.toModel(r.ID)
		r.UpdatedAt = updated
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	return results, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

func (s *PostgresStore) DeleteChunks(ctx context.Context, parentID string, keep []string) (n int64, err error) {
	defer func() { s.metrics.RecordStoreOperation("delete", s.Backend(), err == nil) }()

	prefix := chunkPrefix(parentID)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE starts_with(doc_id, $1)
			AND substr(doc_id, length($1) + 1) ~ '^[0-9]+$'
			AND NOT (doc_id = ANY($2))
	`, s.table), prefix, keepList(keep))
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", parentID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// tableName undoes Identifier quoting for use inside derived names.
func tableName(quoted string) string {
	if len(quoted) >= 2 && quoted[0] == '"' && quoted[len(quoted)-1] == '"' {
		return quoted[1 : len(quoted)-1]
	}
	return quoted
}
