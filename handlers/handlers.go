// Package handlers holds the endpoint bodies shared by the gin router and
// the plain net/http entry point. Handlers see a Request and return a
// Response; authentication has already happened by the time they run.
package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"humana-api/internal/auth"
	"humana-api/internal/logger"
	"humana-api/models"
	"humana-api/services"
	"humana-api/utils"
)

// ErrNoFile is returned by Request.FormFile when the field is absent.
var ErrNoFile = errors.New("no such file")

// Request is the transport-neutral view of an inbound call.
type Request interface {
	Context() context.Context
	DecodeJSON(v interface{}) error
	FormFile(field string) (multipart.File, *multipart.FileHeader, error)
	FormValue(field string) string
	Principal() *auth.Principal
	RequestID() string
}

// Response is either a JSON body or raw bytes with a content type.
type Response struct {
	Status      int
	Body        interface{}
	Raw         []byte
	ContentType string
	Err         *utils.AppError
}

type HandlerFunc func(Request) Response

func JSON(status int, body interface{}) Response {
	return Response{Status: status, Body: body}
}

func Fail(e *utils.AppError) Response {
	return Response{Status: e.Status, Body: e.Response(), Err: e}
}

// Handlers binds endpoint bodies to the service layer.
type Handlers struct {
	Chat   *services.ChatService
	Ingest *services.IngestService
	Speech *services.SpeechService
	Probe  *services.StoreProbe
}

func New(c *services.Container) *Handlers {
	return &Handlers{Chat: c.Chat, Ingest: c.Ingest, Speech: c.Speech, Probe: c.Probe}
}

func (h *Handlers) Health(Request) Response {
	return JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *Handlers) Ready(r Request) Response {
	health := h.Probe.Current(r.Context())
	return JSON(http.StatusOK, map[string]interface{}{"ok": true, "store": health.Status})
}

// Chat answers one conversation turn.
func (h *Handlers) Chat(r Request) Response {
	var req models.ChatRequest
	if err := r.DecodeJSON(&req); err != nil {
		return Fail(utils.BodyError(err))
	}
	resp, appErr := h.Chat.Reply(r.Context(), &req)
	if appErr != nil {
		return Fail(appErr)
	}
	return JSON(http.StatusOK, resp)
}

// Transcribe turns an uploaded "audio" file into text.
func (h *Handlers) Transcribe(r Request) Response {
	var audio io.Reader
	var filename string
	file, header, err := r.FormFile("audio")
	if err == nil {
		defer file.Close()
		audio = file
		filename = header.Filename
	} else if !errors.Is(err, ErrNoFile) {
		logger.FromContext(r.Context()).Warn("Could not read audio upload", "error", err)
	}

	resp, appErr := h.Speech.Transcribe(r.Context(), audio, filename)
	if appErr != nil {
		return Fail(appErr)
	}
	return JSON(http.StatusOK, resp)
}

// Synthesize returns spoken audio for the requested text.
func (h *Handlers) Synthesize(r Request) Response {
	// A configuration error takes precedence over a malformed body.
	if appErr := h.Speech.Ready(); appErr != nil {
		return Fail(appErr)
	}
	var req models.SpeechRequest
	if err := r.DecodeJSON(&req); err != nil {
		return Fail(utils.BodyError(err))
	}

	out, appErr := h.Speech.Synthesize(r.Context(), &req)
	if appErr != nil {
		return Fail(appErr)
	}
	return Response{Status: http.StatusOK, Raw: out.Audio, ContentType: out.ContentType}
}

// IngestDocument stores one admin-supplied document.
func (h *Handlers) IngestDocument(r Request) Response {
	var req models.IngestRequest
	if err := r.DecodeJSON(&req); err != nil {
		return Fail(utils.BodyError(err))
	}
	resp, appErr := h.Ingest.Ingest(r.Context(), &req)
	if appErr != nil {
		return Fail(appErr)
	}
	return JSON(http.StatusOK, resp)
}

// IngestPDF stores a PDF uploaded as the "file" field.
func (h *Handlers) IngestPDF(r Request) Response {
	meta := models.DocumentMetadata{
		ID:       r.FormValue("id"),
		Title:    r.FormValue("title"),
		Source:   r.FormValue("source"),
		Category: r.FormValue("category"),
	}

	var content []byte
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		content, err = io.ReadAll(file)
		if err != nil {
			return Fail(utils.BodyError(err))
		}
		if meta.Source == "" {
			meta.Source = header.Filename
		}
	}

	resp, appErr := h.Ingest.IngestPDF(r.Context(), content, meta)
	if appErr != nil {
		return Fail(appErr)
	}
	return JSON(http.StatusOK, resp)
}

// IngestAsync queues a document for the background worker.
func (h *Handlers) IngestAsync(r Request) Response {
	var req models.IngestRequest
	if err := r.DecodeJSON(&req); err != nil {
		return Fail(utils.BodyError(err))
	}
	var requestedBy string
	if p := r.Principal(); p != nil {
		requestedBy = p.ID
	}
	resp, appErr := h.Ingest.Enqueue(r.Context(), &req, requestedBy, r.RequestID())
	if appErr != nil {
		return Fail(appErr)
	}
	return JSON(http.StatusAccepted, resp)
}

func (h *Handlers) Stats(r Request) Response {
	stats, appErr := h.Ingest.Stats(r.Context())
	if appErr != nil {
		return Fail(appErr)
	}
	return JSON(http.StatusOK, stats)
}
