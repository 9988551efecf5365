package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"humana-api/internal/telemetry"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding BLOB,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at);
`

// SQLiteStore is a single-file store for local development and tests.
// Similarity is computed in process over every embedded row.
type SQLiteStore struct {
	db      *sql.DB
	dims    int
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewSQLiteStore(path string, dims int, metrics *telemetry.Metrics) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, dims: dims, metrics: metrics, now: time.Now}, nil
}

func (s *SQLiteStore) Backend() string { return "sqlite" }

func (s *SQLiteStore) Upsert(ctx context.Context, doc Document) (err error) {
	if err := validateDocument(doc, s.dims); err != nil {
		return err
	}
	defer func() { s.metrics.RecordStoreOperation("upsert", s.Backend(), err == nil) }()

	metadata, err := json.Marshal(toStored(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := s.now().UTC().UnixNano()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, content, metadata, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Content, string(metadata), encodeVector(doc.Embedding), now, now)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, limit int) (results []Result, err error) {
	if err := checkDimensions(embedding, s.dims); err != nil {
		return nil, err
	}
	defer func() { s.metrics.RecordStoreOperation("query", s.Backend(), err == nil) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, content, metadata, embedding, created_at, updated_at
		FROM documents
		WHERE embedding IS NOT NULL AND length(embedding) > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	top := newTopResults(limit)
	for rows.Next() {
		var (
			d                Document
			raw              string
			blob             []byte
			created, updated int64
			metadata         storedMetadata
		)
		if err := rows.Scan(&d.ID, &d.Content, &raw, &blob, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", d.ID, err)
		}
		d.Metadata = metadata.toModel(d.ID)
		d.Embedding = decodeVector(blob)
		d.CreatedAt = time.Unix(0, created).UTC()
		d.UpdatedAt = time.Unix(0, updated).UTC()
		top.offer(embedding, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return top.results(), nil
}

func (s *SQLiteStore) DeleteChunks(ctx context.Context, parentID string, keep []string) (n int64, err error) {
	defer func() { s.metrics.RecordStoreOperation("delete", s.Backend(), err == nil) }()

	keepJSON, err := json.Marshal(keepList(keep))
	if err != nil {
		return 0, err
	}
	prefix := chunkPrefix(parentID)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE instr(doc_id, ?1) = 1
			AND length(doc_id) > length(?1)
			AND substr(doc_id, length(?1) + 1) NOT GLOB '*[^0-9]*'
			AND doc_id NOT IN (SELECT value FROM json_each(?2))
	`, prefix, string(keepJSON))
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", parentID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector packs a vector as little-endian float32s; nil stays NULL.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
