package rag

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newMongoTestStore uses a throwaway collection on the server named by
// MONGODB_URI. Queries take the in-process path; $vectorSearch needs Atlas.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("mongo unreachable: %v", err)
	}

	s := NewMongoStore(client.Database("humana_test"), fmt.Sprintf("rag_test_%d", time.Now().UnixNano()), 3, false, "", nil)
	require.NoError(t, s.EnsureIndexes(ctx))
	t.Cleanup(func() {
		_ = s.coll.Drop(context.Background())
		s.Close()
	})
	return s
}

func TestMongoStore_EmptyStore(t *testing.T) {
	s := newMongoTestStore(t)

	results, err := s.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMongoStore_UpsertReplaces(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, doc("art-1", "first version", 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, doc("art-1", "second version", 0, 1, 0)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	results, err := s.Query(ctx, []float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Content)
	assert.Equal(t, "T-art-1", results[0].Metadata.Title)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
}

func TestMongoStore_SkipsDocumentsWithoutEmbedding(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	_, err := s.coll.InsertOne(ctx, bson.M{"doc_id": "legacy", "content": "no vector", "updated_at": time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, doc("embedded", "has vector", 1, 0, 0)))

	results, err := s.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "embedded", results[0].ID)
}

func TestMongoStore_OrderingAndTieBreak(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, doc("far", "far", 0, 0, 1)))
	require.NoError(t, s.Upsert(ctx, doc("b-tie", "tie", 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, doc("a-tie", "tie", 1, 0, 0)))
	require.NoError(t, s.Upsert(ctx, doc("newest", "tie", 1, 0, 0)))

	_, err := s.coll.UpdateMany(ctx,
		bson.M{"doc_id": bson.M{"$in": []string{"a-tie", "b-tie"}}},
		bson.M{"$set": bson.M{"updated_at": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}})
	require.NoError(t, err)
	_, err = s.coll.UpdateOne(ctx,
		bson.M{"doc_id": "newest"},
		bson.M{"$set": bson.M{"updated_at": time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}})
	require.NoError(t, err)

	results, err := s.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"newest", "a-tie", "b-tie"}, ids)
}

func TestMongoStore_DeleteChunks(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"udhr", "udhr#0", "udhr#1", "udhr#2", "udhr#notes", "udhr.#1"} {
		require.NoError(t, s.Upsert(ctx, doc(id, id, 1, 0, 0)))
	}

	n, err := s.DeleteChunks(ctx, "udhr", []string{ChunkID("udhr", 0)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}
