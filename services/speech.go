package services

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"humana-api/internal/logger"
	"humana-api/models"
	"humana-api/utils"
)

// SpeechClient is the provider surface behind the speech endpoints.
type SpeechClient interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	Synthesize(ctx context.Context, text, voice, format string) ([]byte, error)
}

// SpeechService wraps transcription and synthesis. Both require OpenAI
// credentials regardless of the chat provider.
type SpeechService struct {
	client  SpeechClient
	timeout time.Duration
}

func NewSpeechService(client SpeechClient, timeout time.Duration) *SpeechService {
	return &SpeechService{client: client, timeout: timeout}
}

// Synthesized is the audio body plus the content type to send it with.
type Synthesized struct {
	Audio       []byte
	ContentType string
}

// Ready reports 503 when no OpenAI client is configured.
func (s *SpeechService) Ready() *utils.AppError {
	if s.client == nil {
		return utils.NewNotConfiguredError("openai")
	}
	return nil
}

func (s *SpeechService) Transcribe(ctx context.Context, audio io.Reader, filename string) (*models.TranscriptionResponse, *utils.AppError) {
	if appErr := s.Ready(); appErr != nil {
		return nil, appErr
	}
	if audio == nil {
		return nil, &utils.AppError{Kind: utils.KindValidation, Status: http.StatusBadRequest, Code: "audio_file_required"}
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.webm"
	}

	ctx, cancel := utils.WithCustomTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.client.Transcribe(ctx, audio, filename)
	if err != nil {
		logger.FromContext(ctx).Error("Transcription failed", "error", err)
		return nil, utils.NewDependencyError("whisper_error", err)
	}
	return &models.TranscriptionResponse{Text: text}, nil
}

func (s *SpeechService) Synthesize(ctx context.Context, req *models.SpeechRequest) (*Synthesized, *utils.AppError) {
	if appErr := s.Ready(); appErr != nil {
		return nil, appErr
	}
	if appErr := utils.ValidateStruct(req); appErr != nil {
		return nil, appErr
	}
	format := req.Format
	if format == "" {
		format = models.AudioFormatMP3
	}

	ctx, cancel := utils.WithCustomTimeout(ctx, s.timeout)
	defer cancel()

	audio, err := s.client.Synthesize(ctx, req.Text, req.Voice, format)
	if err != nil {
		logger.FromContext(ctx).Error("Speech synthesis failed", "error", err)
		return nil, utils.NewDependencyError("tts_error", err)
	}
	return &Synthesized{Audio: audio, ContentType: req.ContentType()}, nil
}
