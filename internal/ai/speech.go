package ai

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

const defaultAudioFilename = "audio.webm"

// Speech is a passthrough to the provider's hosted speech models. Nothing
// is recognised or synthesised locally.
type Speech struct {
	client   *openai.Client
	sttModel string
	ttsModel string
	voice    string
	guard    *Guard
}

func NewSpeech(apiKey, baseURL, sttModel, ttsModel, voice string, guard *Guard) (*Speech, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNotConfigured)
	}
	return &Speech{
		client:   newOpenAIClient(apiKey, baseURL, nil),
		sttModel: sttModel,
		ttsModel: ttsModel,
		voice:    voice,
		guard:    guard,
	}, nil
}

// Transcribe uploads audio for recognition. The filename's extension tells
// the provider the container format.
func (s *Speech) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = defaultAudioFilename
	}
	result, err := s.guard.Execute(ctx, "openai.transcription", func(ctx context.Context) (interface{}, error) {
		return s.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    s.sttModel,
			FilePath: filename,
			Reader:   audio,
		})
	})
	if err != nil {
		return "", asProviderError("openai", err)
	}
	return result.(openai.AudioResponse).Text, nil
}

// Synthesize returns the full encoded audio. Responses are small enough
// that buffering keeps the error path simple.
func (s *Speech) Synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	if voice == "" {
		voice = s.voice
	}
	if format == "" {
		format = string(openai.SpeechResponseFormatMp3)
	}
	result, err := s.guard.Execute(ctx, "openai.speech", func(ctx context.Context) (interface{}, error) {
		resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(s.ttsModel),
			Input:          text,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormat(format),
		})
		if err != nil {
			return nil, err
		}
		defer resp.Close()
		return io.ReadAll(resp)
	})
	if err != nil {
		return nil, asProviderError("openai", err)
	}
	return result.([]byte), nil
}
