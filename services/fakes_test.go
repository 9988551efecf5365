package services

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"humana-api/internal/ai"
	"humana-api/internal/queue"
	"humana-api/internal/rag"
	"humana-api/models"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	turns []models.ChatTurn
	opts  ai.CompletionOptions
}

func (f *fakeCompleter) Complete(_ context.Context, turns []models.ChatTurn, opts ai.CompletionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.turns = turns
	f.opts = opts
	return f.reply, f.err
}

func (f *fakeCompleter) Provider() string { return "openai" }

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

type fakeRetriever struct {
	context string
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) string {
	f.queries = append(f.queries, query)
	return f.context
}

type memoryStore struct {
	docs      map[string]rag.Document
	queryErr  error
	upsertErr error
	deleteErr error
	upserts   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string]rag.Document{}}
}

func (m *memoryStore) Upsert(_ context.Context, doc rag.Document) error {
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memoryStore) Query(context.Context, []float32, int) ([]rag.Result, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	out := []rag.Result{}
	for _, d := range m.docs {
		out = append(out, rag.Result{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}
	return out, nil
}

func (m *memoryStore) DeleteChunks(_ context.Context, parentID string, keep []string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	kept := map[string]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	var n int64
	for id := range m.docs {
		suffix, ok := strings.CutPrefix(id, parentID+"#")
		if !ok || kept[id] {
			continue
		}
		if _, err := strconv.Atoi(suffix); err != nil {
			continue
		}
		delete(m.docs, id)
		n++
	}
	return n, nil
}

func (m *memoryStore) Count(context.Context) (int64, error) { return int64(len(m.docs)), nil }
func (m *memoryStore) Ping(context.Context) error           { return m.queryErr }
func (m *memoryStore) Close() error                         { return nil }
func (m *memoryStore) Backend() string                      { return "memory" }

type fakeEnqueuer struct {
	payloads []queue.IngestPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueIngest(_ context.Context, p queue.IngestPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return "task-1", nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, []byte) (*ExtractionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ExtractionResult{Text: f.text, Pages: 1, WordCount: len(strings.Fields(f.text)), QualityScore: 1}, nil
}
