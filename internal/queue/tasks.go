package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"humana-api/internal/config"
	"humana-api/internal/logger"
	"humana-api/models"

	"github.com/hibiken/asynq"
)

const (
	TaskRAGIngest = "rag:ingest"

	QueueIngest = "ingest"
)

// ErrPermanent marks an ingestion failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent ingestion failure")

type IngestPayload struct {
	Request     models.IngestRequest `json:"request"`
	RequestedBy string               `json:"requested_by,omitempty"`
	RequestID   string               `json:"request_id,omitempty"`
}

// NewIngestTask wraps one document for background embedding and upsert.
// Replays are harmless because the store upserts by document id.
func NewIngestTask(payload IngestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRAGIngest,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueIngest),
	), nil
}

// RedisConnOpt adapts the shared Redis settings for asynq.
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Enqueuer submits ingestion tasks.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

// EnqueueIngest returns the task id assigned by the queue.
func (e *Enqueuer) EnqueueIngest(ctx context.Context, payload IngestPayload) (string, error) {
	task, err := NewIngestTask(payload)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TaskRAGIngest, err)
	}
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Ingester stores one document. Errors wrapping ErrPermanent are not retried.
type Ingester interface {
	IngestDocument(ctx context.Context, req models.IngestRequest) error
}

type TaskProcessor struct {
	ingester Ingester
}

func NewTaskProcessor(ingester Ingester) *TaskProcessor {
	return &TaskProcessor{ingester: ingester}
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	log := logger.Logger.With("task", TaskRAGIngest, "doc_id", payload.Request.Metadata.ID)
	if payload.RequestID != "" {
		log = log.With("request_id", payload.RequestID)
	}
	log.Info("Processing ingestion task", "requested_by", payload.RequestedBy)

	start := time.Now()
	if err := p.ingester.IngestDocument(ctx, payload.Request); err != nil {
		log.Error("Ingestion task failed", "error", err)
		if errors.Is(err, ErrPermanent) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	log.Info("Ingestion task completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRAGIngest, p.ProcessIngest)
	return mux
}
