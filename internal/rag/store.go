// Package rag holds the retrieval store contract, its backends and the
// fail-open retriever used by chat.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"humana-api/models"
)

var (
	// ErrDimensionMismatch rejects a vector whose length differs from the
	// store's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyID           = errors.New("document id is required")
)

// Document is one stored passage. ID is caller-supplied and unique.
type Document struct {
	ID        string
	Content   string
	Metadata  models.DocumentMetadata
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is a read-only projection of a query hit. Distance is cosine
// distance; smaller is closer.
type Result struct {
	ID        string
	Content   string
	Metadata  models.DocumentMetadata
	Distance  float64
	UpdatedAt time.Time
}

// Store persists documents and answers nearest-neighbour queries.
// Implementations must order results by ascending distance, breaking ties
// by most recent update then by id, and must never return a document that
// has no embedding.
type Store interface {
	Upsert(ctx context.Context, doc Document) error
	Query(ctx context.Context, embedding []float32, limit int) ([]Result, error)
	Count(ctx context.Context) (int64, error)
	// DeleteChunks removes the chunks of parentID (ids "<parentID>#<n>")
	// whose id is not in keep, and reports how many were removed.
	DeleteChunks(ctx context.Context, parentID string, keep []string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
	Backend() string
}

// ChunkID names the n-th chunk of a split document.
func ChunkID(parentID string, n int) string {
	return fmt.Sprintf("%s#%d", parentID, n)
}

func chunkPrefix(parentID string) string {
	return parentID + "#"
}

// keepList never returns nil so drivers encode an empty array, not NULL.
func keepList(keep []string) []string {
	if keep == nil {
		return []string{}
	}
	return keep
}

func checkDimensions(embedding []float32, want int) error {
	if want > 0 && len(embedding) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), want)
	}
	return nil
}

func validateDocument(doc Document, dims int) error {
	if doc.ID == "" {
		return ErrEmptyID
	}
	return checkDimensions(doc.Embedding, dims)
}

// storedMetadata is the JSON shape persisted alongside each document. The id
// lives in its own column.
type storedMetadata struct {
	Title    string                 `json:"title,omitempty" bson:"title,omitempty"`
	Source   string                 `json:"source,omitempty" bson:"source,omitempty"`
	Category string                 `json:"category,omitempty" bson:"category,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty" bson:"extra,omitempty"`
}

func toStored(m models.DocumentMetadata) storedMetadata {
	return storedMetadata{Title: m.Title, Source: m.Source, Category: m.Category, Extra: m.Extra}
}

func (s storedMetadata) toModel(id string) models.DocumentMetadata {
	return models.DocumentMetadata{ID: id, Title: s.Title, Source: s.Source, Category: s.Category, Extra: s.Extra}
}
