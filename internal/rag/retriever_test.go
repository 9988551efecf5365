package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"humana-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	delay time.Duration
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.vec, f.err
}

func (f *fakeEmbedder) Model() string { return "fake" }

func TestRetriever_FormatsResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, Document{
		ID: "a", Content: "Right to asylum", Embedding: []float32{1, 0, 0},
		Metadata: models.DocumentMetadata{ID: "a", Title: "Article 14"},
	}))
	require.NoError(t, s.Upsert(ctx, Document{ID: "b", Content: "Untitled text", Embedding: []float32{0.9, 0.1, 0}}))

	r := NewRetriever(&fakeEmbedder{vec: []float32{1, 0, 0}}, s, 3, time.Second, nil)
	assert.Equal(t, "[Article 14]: Right to asylum\n\n[Document]: Untitled text", r.Retrieve(ctx, "asylum"))
}

func TestRetriever_FailOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("embedding error", func(t *testing.T) {
		r := NewRetriever(&fakeEmbedder{err: errors.New("503 upstream")}, s, 3, time.Second, nil)
		assert.Empty(t, r.Retrieve(ctx, "hello"))
	})

	t.Run("timeout", func(t *testing.T) {
		r := NewRetriever(&fakeEmbedder{vec: []float32{1, 0, 0}, delay: time.Second}, s, 3, 20*time.Millisecond, nil)
		assert.Empty(t, r.Retrieve(ctx, "hello"))
	})

	t.Run("store error", func(t *testing.T) {
		r := NewRetriever(&fakeEmbedder{vec: []float32{1, 0}}, s, 3, time.Second, nil)
		assert.Empty(t, r.Retrieve(ctx, "hello"))
	})

	t.Run("disabled", func(t *testing.T) {
		emb := &fakeEmbedder{vec: []float32{1, 0, 0}}
		r := NewRetriever(emb, nil, 3, time.Second, nil)
		assert.False(t, r.Enabled())
		assert.Empty(t, r.Retrieve(ctx, "hello"))
		assert.Zero(t, emb.calls)
	})
}
