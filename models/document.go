package models

import "time"

// DocumentMetadata describes an ingested passage. ID is the caller-supplied
// identity; re-ingesting the same ID replaces the stored document.
type DocumentMetadata struct {
	ID       string                 `json:"id" bson:"id" validate:"required"`
	Title    string                 `json:"title,omitempty" bson:"title,omitempty"`
	Source   string                 `json:"source,omitempty" bson:"source,omitempty"`
	Category string                 `json:"category,omitempty" bson:"category,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty" bson:"extra,omitempty"`
}

type IngestRequest struct {
	Content  string           `json:"content" validate:"required,min=1"`
	Metadata DocumentMetadata `json:"metadata" validate:"required"`
}

type IngestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Chunks  int    `json:"chunks,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

type StoreStats struct {
	Documents      int64     `json:"documents"`
	Backend        string    `json:"backend"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	CheckedAt      time.Time `json:"checked_at"`
}
