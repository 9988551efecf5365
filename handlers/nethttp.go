package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"humana-api/internal/auth"
	"humana-api/internal/logger"
	"humana-api/utils"

	"github.com/google/uuid"
)

// Access is the credential level an endpoint requires.
type Access int

const (
	Public Access = iota
	Authenticated
	Admin
)

const requestIDHeader = "X-Request-ID"

type netRequest struct {
	r         *http.Request
	principal *auth.Principal
	requestID string
}

func (n *netRequest) Context() context.Context { return n.r.Context() }

func (n *netRequest) DecodeJSON(v interface{}) error {
	return json.NewDecoder(n.r.Body).Decode(v)
}

func (n *netRequest) FormFile(field string) (multipart.File, *multipart.FileHeader, error) {
	f, h, err := n.r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, ErrNoFile
	}
	return f, h, err
}

func (n *netRequest) FormValue(field string) string { return n.r.FormValue(field) }

func (n *netRequest) Principal() *auth.Principal { return n.principal }

func (n *netRequest) RequestID() string { return n.requestID }

// NetHTTP adapts fn to net/http for deployments that run without gin.
// Request ids, body limits and the credential gate match the gin router.
func NetHTTP(fn HandlerFunc, verifier auth.Verifier, access Access, maxBody int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}

		req := &netRequest{r: r, requestID: requestID}
		var resp Response
		switch access {
		case Authenticated, Admin:
			authenticate := auth.Authenticate
			if access == Admin {
				authenticate = auth.AuthenticateAdmin
			}
			principal, appErr := authenticate(r.Context(), verifier, r.Header.Get("Authorization"))
			if appErr != nil {
				resp = Fail(appErr)
				break
			}
			req.principal = principal
			resp = fn(req)
		default:
			resp = fn(req)
		}

		WriteResponse(w, resp)
		logger.FromContext(r.Context()).Info("request",
			"method", r.Method, "path", r.URL.Path, "status", resp.Status,
			"duration_ms", time.Since(start).Milliseconds(), "client_ip", utils.GetClientIP(r))
	})
}

// WriteResponse serializes resp onto w.
func WriteResponse(w http.ResponseWriter, resp Response) {
	if resp.Raw != nil {
		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Raw)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status)
	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

// NewServeMux registers every endpoint on a plain net/http mux.
func NewServeMux(h *Handlers, verifier auth.Verifier, maxBody, maxAudio int64) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /health", NetHTTP(h.Health, verifier, Public, 0))
	mux.Handle("GET /ready", NetHTTP(h.Ready, verifier, Public, 0))

	mux.Handle("POST /v1/chat", NetHTTP(h.Chat, verifier, Authenticated, maxBody))
	mux.Handle("POST /v1/tts", NetHTTP(h.Synthesize, verifier, Authenticated, maxBody))
	mux.Handle("POST /v1/stt", NetHTTP(h.Transcribe, verifier, Authenticated, maxAudio))

	mux.Handle("POST /admin/rag-upload", NetHTTP(h.IngestDocument, verifier, Admin, maxBody))
	mux.Handle("POST /admin/rag-upload/pdf", NetHTTP(h.IngestPDF, verifier, Admin, maxBody))
	mux.Handle("POST /admin/rag-upload/async", NetHTTP(h.IngestAsync, verifier, Admin, maxBody))
	mux.Handle("GET /admin/rag-stats", NetHTTP(h.Stats, verifier, Admin, 0))
	return mux
}
