package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"humana-api/internal/ai"
	"humana-api/internal/logger"
	"humana-api/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const untitledDocument = "Document"

// Retriever turns a user message into reference text. It is best-effort:
// any failure yields empty context and the chat proceeds without it.
type Retriever struct {
	embedder ai.Embedder
	store    Store
	topK     int
	timeout  time.Duration
	metrics  *telemetry.Metrics
}

func NewRetriever(embedder ai.Embedder, store Store, topK int, timeout time.Duration, metrics *telemetry.Metrics) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{embedder: embedder, store: store, topK: topK, timeout: timeout, metrics: metrics}
}

// Enabled reports whether both an embedder and a store are configured.
func (r *Retriever) Enabled() bool {
	return r != nil && r.embedder != nil && r.store != nil
}

// Retrieve never fails; errors are logged at warn and produce "".
func (r *Retriever) Retrieve(ctx context.Context, query string) string {
	if r == nil {
		return ""
	}
	if !r.Enabled() || strings.TrimSpace(query) == "" {
		r.metrics.RecordRetrieval("skipped")
		return ""
	}

	ctx, span := otel.Tracer("humana-api/rag").Start(ctx, "rag.retrieve")
	defer span.End()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results, err := r.search(ctx, query)
	if err != nil {
		span.RecordError(err)
		logger.FromContext(ctx).Warn("Context retrieval failed, continuing without context",
			"error", err, "timeout", errors.Is(err, context.DeadlineExceeded))
		r.metrics.RecordRetrieval("error")
		return ""
	}

	span.SetAttributes(attribute.Int("rag.results", len(results)))
	if len(results) == 0 {
		r.metrics.RecordRetrieval("miss")
		return ""
	}
	r.metrics.RecordRetrieval("hit")
	return FormatContext(results)
}

func (r *Retriever) search(ctx context.Context, query string) ([]Result, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.Query(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", r.store.Backend(), err)
	}
	return results, nil
}

// FormatContext renders results as "[title]: content" blocks separated by
// blank lines, closest first.
func FormatContext(results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, res := range results {
		title := strings.TrimSpace(res.Metadata.Title)
		if title == "" {
			title = untitledDocument
		}
		blocks = append(blocks, fmt.Sprintf("[%s]: %s", title, res.Content))
	}
	return strings.Join(blocks, "\n\n")
}
