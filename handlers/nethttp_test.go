package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"humana-api/internal/ai"
	"humana-api/internal/auth"
	"humana-api/models"
	"humana-api/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCompleter struct{ calls int }

func (e *echoCompleter) Complete(_ context.Context, turns []models.ChatTurn, _ ai.CompletionOptions) (string, error) {
	e.calls++
	return "echo: " + turns[len(turns)-1].Content, nil
}

func (e *echoCompleter) Provider() string { return "openai" }

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	switch token {
	case "user":
		return &auth.Principal{ID: "u1"}, nil
	case "admin":
		return &auth.Principal{ID: "a1", Role: "admin", Admin: true}, nil
	}
	return nil, auth.ErrInvalidToken
}

func newMux(completer ai.Completer) *http.ServeMux {
	h := &Handlers{
		Chat:   services.NewChatService(completer, "openai", nil, ai.DefaultCompletionOptions("gpt-4o-mini"), time.Second),
		Ingest: services.NewIngestService(nil, nil, nil, services.IngestConfig{EmbeddingsProvider: "mistral"}, nil),
		Speech: services.NewSpeechService(nil, time.Second),
		Probe:  services.NewStoreProbe(nil, time.Second),
	}
	return NewServeMux(h, stubVerifier{}, 1<<20, 1<<20)
}

func serve(mux http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestNetHTTP_Chat(t *testing.T) {
	completer := &echoCompleter{}
	mux := newMux(completer)

	w := serve(mux, http.MethodPost, "/v1/chat", "user", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"echo: hi"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(mux, http.MethodPost, "/v1/chat", "", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, completer.calls)
}

func TestNetHTTP_ValidationEnvelope(t *testing.T) {
	w := serve(newMux(&echoCompleter{}), http.MethodPost, "/v1/chat", "user", `{"messages":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_body", body["error"])
	assert.NotNil(t, body["details"])
}

func TestNetHTTP_AdminGate(t *testing.T) {
	mux := newMux(&echoCompleter{})
	payload := `{"content":"x","metadata":{"id":"d1"}}`

	w := serve(mux, http.MethodPost, "/admin/rag-upload", "user", payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(mux, http.MethodPost, "/admin/rag-upload", "admin", payload)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "mistral_not_configured")
}

func TestNetHTTP_Health(t *testing.T) {
	mux := newMux(nil)

	w := serve(mux, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = serve(mux, http.MethodGet, "/ready", "", "")
	assert.JSONEq(t, `{"ok":true,"store":"disabled"}`, w.Body.String())
}

func TestNetHTTP_ChatNotConfigured(t *testing.T) {
	w := serve(newMux(nil), http.MethodPost, "/v1/chat", "user", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "openai_not_configured")
}
