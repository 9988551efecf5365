package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 2.0, CosineDistance([]float32{1}, []float32{1, 0}))
}

func TestRankDocuments(t *testing.T) {
	assert.Empty(t, rankDocuments(nil, []float32{1, 0}, 3))

	now := time.Now()
	docs := []Document{
		{ID: "none"},
		{ID: "b", Embedding: []float32{1, 0}, UpdatedAt: now},
		{ID: "a", Embedding: []float32{1, 0}, UpdatedAt: now},
		{ID: "newer", Embedding: []float32{1, 0}, UpdatedAt: now.Add(time.Minute)},
		{ID: "far", Embedding: []float32{0, 1}, UpdatedAt: now.Add(time.Hour)},
	}
	got := rankDocuments(docs, []float32{1, 0}, 10)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"newer", "a", "b", "far"}, ids)

	assert.Len(t, rankDocuments(docs, []float32{1, 0}, 2), 2)
}

func TestTopResultsKeepsClosestWhileStreaming(t *testing.T) {
	now := time.Now()
	top := newTopResults(2)
	// Worst first so every later offer has to displace a kept result.
	for i, v := range [][]float32{{0, 1}, {1, 1}, {1, 0.5}, {1, 0.1}, {1, 0}} {
		top.offer([]float32{1, 0}, Document{ID: string(rune('a' + i)), Embedding: v, UpdatedAt: now})
	}
	got := top.results()
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"e", "d"}, ids)

	unbounded := newTopResults(0)
	for i := 0; i < 50; i++ {
		unbounded.offer([]float32{1, 0}, Document{ID: string(rune('A' + i)), Embedding: []float32{1, float32(i)}})
	}
	assert.Len(t, unbounded.results(), 50)
}
