package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"humana-api/internal/telemetry"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
)

type mongoDocument struct {
	DocID     string         `bson:"doc_id"`
	Content   string         `bson:"content"`
	Metadata  storedMetadata `bson:"metadata"`
	Embedding []float32      `bson:"embedding,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
	Score     float64        `bson:"score,omitempty"`
}

// MongoStore keeps documents in a collection keyed by doc_id. With Atlas
// vector search enabled queries run server-side; otherwise similarity is
// computed in process.
type MongoStore struct {
	coll         *mongo.Collection
	dims         int
	vectorSearch bool
	vectorIndex  string
	metrics      *telemetry.Metrics
}

func NewMongoStore(db *mongo.Database, collection string, dims int, vectorSearch bool, vectorIndex string, metrics *telemetry.Metrics) *MongoStore {
	return &MongoStore{
		coll:         db.Collection(collection),
		dims:         dims,
		vectorSearch: vectorSearch,
		vectorIndex:  vectorIndex,
		metrics:      metrics,
	}
}

func (s *MongoStore) Backend() string { return "mongo" }

// EnsureIndexes creates the unique doc_id index that makes upserts safe.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "doc_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	return err
}

func (s *MongoStore) Upsert(ctx context.Context, doc Document) (err error) {
	if err := validateDocument(doc, s.dims); err != nil {
		return err
	}
	ctx, span := otel.Tracer("humana-api/rag").Start(ctx, "rag.mongo.upsert")
	defer span.End()
	defer func() { s.metrics.RecordStoreOperation("upsert", s.Backend(), err == nil) }()

	now := time.Now().UTC()
	_, err = s.coll.UpdateOne(ctx,
		bson.M{"doc_id": doc.ID},
		bson.M{
			"$set": bson.M{
				"content":    doc.Content,
				"metadata":   toStored(doc.Metadata),
				"embedding":  doc.Embedding,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, embedding []float32, limit int) (results []Result, err error) {
	if err := checkDimensions(embedding, s.dims); err != nil {
		return nil, err
	}
	ctx, span := otel.Tracer("humana-api/rag").Start(ctx, "rag.mongo.query")
	defer span.End()
	defer func() { s.metrics.RecordStoreOperation("query", s.Backend(), err == nil) }()

	if s.vectorSearch {
		return s.vectorQuery(ctx, embedding, limit)
	}
	return s.bruteForceQuery(ctx, embedding, limit)
}

// vectorQuery uses Atlas $vectorSearch. The index must be defined with the
// cosine similarity function; its score is mapped back to a distance.
func (s *MongoStore) vectorQuery(ctx context.Context, embedding []float32, limit int) ([]Result, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndex,
			"path":          "embedding",
			"queryVector":   embedding,
			"numCandidates": limit * 20,
			"limit":         limit,
		}}},
		{{Key: "$project", Value: bson.M{
			"doc_id": 1, "content": 1, "metadata": 1, "updated_at": 1,
			"score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	results := []Result{}
	for cursor.Next(ctx) {
		var d mongoDocument
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		// Atlas reports cosine as (1 + cos) / 2.
		results = append(results, Result{
			ID:        d.DocID,
			Content:   d.Content,
			Metadata:  d.Metadata.toModel(d.DocID),
			Distance:  1 - (2*d.Score - 1),
			UpdatedAt: d.UpdatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	sortResults(results)
	return results, nil
}

// bruteForceQuery scans every embedded document, keeping only the current
// top results in memory.
func (s *MongoStore) bruteForceQuery(ctx context.Context, embedding []float32, limit int) ([]Result, error) {
	filter := bson.M{"embedding.0": bson.M{"$exists": true}}
	opts := options.Find().SetBatchSize(500)
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer cursor.Close(ctx)

	top := newTopResults(limit)
	for cursor.Next(ctx) {
		var d mongoDocument
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		top.offer(embedding, Document{
			ID:        d.DocID,
			Content:   d.Content,
			Metadata:  d.Metadata.toModel(d.DocID),
			Embedding: d.Embedding,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return top.results(), nil
}

func (s *MongoStore) DeleteChunks(ctx context.Context, parentID string, keep []string) (n int64, err error) {
	defer func() { s.metrics.RecordStoreOperation("delete", s.Backend(), err == nil) }()

	res, err := s.coll.DeleteMany(ctx, bson.M{"doc_id": bson.M{
		"$regex": "^" + regexp.QuoteMeta(chunkPrefix(parentID)) + "[0-9]+$",
		"$nin":   keepList(keep),
	}})
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", parentID, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.coll.Database().Client().Disconnect(ctx)
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return nil
	}
	return err
}
