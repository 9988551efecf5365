package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"humana-api/internal/ai"
	"humana-api/internal/logger"
	"humana-api/internal/queue"
	"humana-api/internal/rag"
	"humana-api/internal/telemetry"
	"humana-api/models"
	"humana-api/utils"
)

// TaskEnqueuer hands ingestion work to the background worker.
type TaskEnqueuer interface {
	EnqueueIngest(ctx context.Context, payload queue.IngestPayload) (string, error)
}

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte) (*ExtractionResult, error)
}

// IngestService embeds documents and upserts them into the retrieval store.
type IngestService struct {
	embedder  ai.Embedder
	provider  string
	store     rag.Store
	chunker   *Chunker
	extractor TextExtractor
	enqueuer  TaskEnqueuer
	timeout   time.Duration
	dims      int
	metrics   *telemetry.Metrics
}

type IngestConfig struct {
	EmbeddingsProvider string
	EmbeddingTimeout   time.Duration
	VectorDimensions   int
	MaxChunkSize       int
	ChunkOverlap       int
	MaxPDFSize         int64
}

// NewIngestService accepts nil for any optional dependency; the matching
// operations then answer 503.
func NewIngestService(embedder ai.Embedder, store rag.Store, enqueuer TaskEnqueuer, cfg IngestConfig, metrics *telemetry.Metrics) *IngestService {
	return &IngestService{
		embedder:  embedder,
		provider:  cfg.EmbeddingsProvider,
		store:     store,
		chunker:   NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MaxChunkSize/10),
		extractor: NewPDFExtractor(cfg.MaxPDFSize),
		enqueuer:  enqueuer,
		timeout:   cfg.EmbeddingTimeout,
		dims:      cfg.VectorDimensions,
		metrics:   metrics,
	}
}

func (s *IngestService) ready() *utils.AppError {
	if s.embedder == nil {
		return utils.NewNotConfiguredError(s.provider)
	}
	if s.store == nil {
		return utils.NewNotConfiguredError("rag_store")
	}
	return nil
}

// Ingest stores one document. Re-ingesting an id replaces the earlier copy.
func (s *IngestService) Ingest(ctx context.Context, req *models.IngestRequest) (*models.IngestResponse, *utils.AppError) {
	if appErr := utils.ValidateStruct(req); appErr != nil {
		return nil, appErr
	}
	if appErr := s.ready(); appErr != nil {
		return nil, appErr
	}
	if appErr := s.storeOne(ctx, req.Metadata.ID, req.Content, req.Metadata); appErr != nil {
		return nil, appErr
	}
	logger.FromContext(ctx).Info("Document stored", "doc_id", req.Metadata.ID, "backend", s.store.Backend())
	return &models.IngestResponse{Success: true, Message: "Document stored"}, nil
}

// IngestDocument is the worker entry point. Validation and configuration
// failures are permanent; provider and store failures may be retried.
func (s *IngestService) IngestDocument(ctx context.Context, req models.IngestRequest) error {
	_, appErr := s.Ingest(ctx, &req)
	if appErr == nil {
		return nil
	}
	if appErr.Kind == utils.KindValidation || appErr.Kind == utils.KindConfiguration {
		return fmt.Errorf("%s: %w", appErr.Error(), queue.ErrPermanent)
	}
	return appErr
}

// IngestPDF extracts, chunks and stores a PDF. Chunk n is stored under
// "<id>#<n>"; once every new chunk is stored, chunks left over from a longer
// earlier upload are deleted.
func (s *IngestService) IngestPDF(ctx context.Context, content []byte, meta models.DocumentMetadata) (*models.IngestResponse, *utils.AppError) {
	start := time.Now()
	if strings.TrimSpace(meta.ID) == "" {
		return nil, utils.NewValidationError(utils.ValidationDetails{
			FormErrors:  []string{},
			FieldErrors: map[string][]string{"id": {"Required"}},
		})
	}
	if len(content) == 0 {
		return nil, &utils.AppError{Kind: utils.KindValidation, Status: http.StatusBadRequest, Code: "pdf_file_required"}
	}
	if appErr := s.ready(); appErr != nil {
		return nil, appErr
	}

	result, err := s.extractor.Extract(ctx, content)
	if err != nil {
		s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), "failed")
		return nil, &utils.AppError{Kind: utils.KindValidation, Status: http.StatusUnprocessableEntity, Code: "pdf_extraction_failed", Message: err.Error(), Err: err}
	}

	chunks := s.chunker.Chunk(result.Text)
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		chunkMeta := meta
		chunkMeta.Extra = copyExtra(meta.Extra)
		chunkMeta.Extra["parent_id"] = meta.ID
		chunkMeta.Extra["chunk"] = i
		chunkMeta.Extra["chunks"] = len(chunks)
		id := rag.ChunkID(meta.ID, i)
		if appErr := s.storeOne(ctx, id, chunk, chunkMeta); appErr != nil {
			s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), "failed")
			return nil, appErr
		}
		ids = append(ids, id)
	}

	stale, err := s.store.DeleteChunks(ctx, meta.ID, ids)
	if err != nil {
		s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), "failed")
		return nil, utils.NewDependencyError("upload_error", err)
	}

	s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), "success")
	logger.FromContext(ctx).Info("PDF stored",
		"doc_id", meta.ID, "pages", result.Pages, "chunks", len(chunks), "stale_chunks", stale,
		"words", result.WordCount, "quality", result.QualityScore)
	return &models.IngestResponse{Success: true, Message: "Document stored", Chunks: len(chunks)}, nil
}

// Enqueue validates and hands the document to the background worker.
func (s *IngestService) Enqueue(ctx context.Context, req *models.IngestRequest, requestedBy, requestID string) (*models.IngestResponse, *utils.AppError) {
	if appErr := utils.ValidateStruct(req); appErr != nil {
		return nil, appErr
	}
	if s.enqueuer == nil {
		return nil, utils.NewNotConfiguredError("queue")
	}
	taskID, err := s.enqueuer.EnqueueIngest(ctx, queue.IngestPayload{Request: *req, RequestedBy: requestedBy, RequestID: requestID})
	if err != nil {
		return nil, utils.NewDependencyError("enqueue_error", err)
	}
	return &models.IngestResponse{Success: true, Message: "Document queued", TaskID: taskID}, nil
}

// Stats reports the store size for the admin dashboard.
func (s *IngestService) Stats(ctx context.Context) (*models.StoreStats, *utils.AppError) {
	if s.store == nil {
		return nil, utils.NewNotConfiguredError("rag_store")
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, utils.NewDependencyError("stats_error", err)
	}
	stats := &models.StoreStats{Documents: n, Backend: s.store.Backend(), Dimensions: s.dims, CheckedAt: time.Now().UTC()}
	if s.embedder != nil {
		stats.EmbeddingModel = s.embedder.Model()
	}
	return stats, nil
}

func (s *IngestService) storeOne(ctx context.Context, id, content string, meta models.DocumentMetadata) *utils.AppError {
	ectx, cancel := utils.WithCustomTimeout(ctx, s.timeout)
	embedding, err := s.embedder.Embed(ectx, content)
	cancel()
	if err != nil {
		return utils.NewDependencyError("embedding_failed", err)
	}

	meta.ID = id
	err = s.store.Upsert(ctx, rag.Document{ID: id, Content: content, Metadata: meta, Embedding: embedding})
	if err != nil {
		if errors.Is(err, rag.ErrDimensionMismatch) {
			logger.FromContext(ctx).Error("Embedding size does not match store schema", "doc_id", id, "error", err)
		}
		return utils.NewDependencyError("upload_error", err)
	}
	return nil
}

func copyExtra(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+3)
	for k, v := range in {
		out[k] = v
	}
	return out
}
