package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"humana-api/handlers"
	"humana-api/internal/ai"
	"humana-api/internal/auth"
	"humana-api/internal/rag"
	"humana-api/models"
	"humana-api/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errUnreachable = errors.New("connection refused")

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	turns []models.ChatTurn
}

func (f *fakeCompleter) Complete(_ context.Context, turns []models.ChatTurn, _ ai.CompletionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.turns = turns
	return f.reply, f.err
}

func (f *fakeCompleter) Provider() string { return "openai" }

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.5, 0.5}, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

type fakeStore struct {
	mu   sync.Mutex
	docs map[string]rag.Document
	err  error
}

func newFakeStore() *fakeStore { return &fakeStore{docs: map[string]rag.Document{}} }

func (s *fakeStore) Upsert(_ context.Context, d rag.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.docs[d.ID] = d
	return nil
}

func (s *fakeStore) Query(context.Context, []float32, int) ([]rag.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]rag.Result, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, rag.Result{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}
	return out, nil
}

func (s *fakeStore) DeleteChunks(_ context.Context, parentID string, keep []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for id := range s.docs {
		if strings.HasPrefix(id, parentID+"#") && !slices.Contains(keep, id) {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Count(context.Context) (int64, error) { return int64(len(s.docs)), s.err }
func (s *fakeStore) Ping(context.Context) error           { return s.err }
func (s *fakeStore) Close() error                         { return nil }
func (s *fakeStore) Backend() string                      { return "fake" }

// tokenVerifier accepts "user-token" and "admin-token".
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	switch token {
	case "user-token":
		return &auth.Principal{ID: "user-1", Role: "authenticated"}, nil
	case "admin-token":
		return &auth.Principal{ID: "admin-1", Role: "admin", Admin: true}, nil
	}
	return nil, auth.ErrInvalidToken
}

type fakeSpeech struct {
	mu     sync.Mutex
	texts  []string
	format string
}

func (f *fakeSpeech) Transcribe(context.Context, io.Reader, string) (string, error) {
	return "hello", nil
}

func (f *fakeSpeech) Synthesize(_ context.Context, text, _, format string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.format = format
	return []byte("ID3"), nil
}

type testEnv struct {
	router    *gin.Engine
	completer *fakeCompleter
	embedder  *fakeEmbedder
	store     *fakeStore
	speech    *fakeSpeech
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, nil)
}

// newSpeechEnv is newTestEnv with an OpenAI speech client configured.
func newSpeechEnv(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, &fakeSpeech{})
}

func buildTestEnv(t *testing.T, speech *fakeSpeech) *testEnv {
	t.Helper()
	env := &testEnv{
		completer: &fakeCompleter{reply: "You may apply for asylum."},
		embedder:  &fakeEmbedder{},
		store:     newFakeStore(),
		speech:    speech,
	}
	var speechClient services.SpeechClient
	if speech != nil {
		speechClient = speech
	}
	retriever := rag.NewRetriever(env.embedder, env.store, 3, time.Second, nil)
	h := &handlers.Handlers{
		Chat: services.NewChatService(env.completer, "openai", retriever,
			ai.DefaultCompletionOptions("gpt-4o-mini"), time.Second),
		Ingest: services.NewIngestService(env.embedder, env.store, nil, services.IngestConfig{
			EmbeddingsProvider: "mistral",
			EmbeddingTimeout:   time.Second,
			VectorDimensions:   2,
			MaxChunkSize:       2000,
			ChunkOverlap:       200,
			MaxPDFSize:         1 << 20,
		}, nil),
		Speech: services.NewSpeechService(speechClient, time.Second),
		Probe:  services.NewStoreProbe(env.store, time.Second),
	}
	env.router = NewRouter(h, tokenVerifier{}, Options{
		CORSOrigins:  []string{"*"},
		MaxBodySize:  1 << 20,
		MaxAudioSize: 1 << 20,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
