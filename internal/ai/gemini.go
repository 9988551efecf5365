package ai

import (
	"context"
	"fmt"
	"strings"

	"humana-api/internal/telemetry"
	"humana-api/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiCompleter talks to Google's Generative Language API. System turns
// become the model's system instruction; assistant turns map to "model".
type GeminiCompleter struct {
	defaultModel string
	client       *genai.Client
	guard        *Guard
	metrics      *telemetry.Metrics
}

func NewGeminiCompleter(ctx context.Context, apiKey, defaultModel string, guard *Guard, metrics *telemetry.Metrics) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: %w", ErrNotConfigured)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{defaultModel: defaultModel, client: client, guard: guard, metrics: metrics}, nil
}

func (c *GeminiCompleter) Provider() string { return "google" }

func (c *GeminiCompleter) Complete(ctx context.Context, turns []models.ChatTurn, opts CompletionOptions) (string, error) {
	opts = opts.normalized(c.defaultModel)

	system, history, last := splitForGemini(turns)
	if last == nil {
		return "", &ProviderError{Provider: "google", Message: "conversation has no message to answer"}
	}

	model := c.client.GenerativeModel(opts.Model)
	model.SetTemperature(float32(opts.Temperature))
	model.SetMaxOutputTokens(int32(opts.MaxTokens))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	result, err := c.guard.Execute(ctx, "google.generate_content", func(ctx context.Context) (interface{}, error) {
		cs := model.StartChat()
		cs.History = history
		return cs.SendMessage(ctx, last.Parts...)
	})
	if err != nil {
		return "", asProviderError("google", err)
	}

	resp := result.(*genai.GenerateContentResponse)
	if resp.UsageMetadata != nil {
		c.metrics.RecordTokensUsed(int64(resp.UsageMetadata.TotalTokenCount), "google", opts.Model)
	}
	return firstCandidateText(resp), nil
}

func (c *GeminiCompleter) Close() error {
	return c.client.Close()
}

// splitForGemini separates system text from the dialogue. The latest user
// turn is sent as the new message and everything before it is history.
// Assistant turns after it are dropped, since Gemini only answers a user turn.
func splitForGemini(turns []models.ChatTurn) (string, []*genai.Content, *genai.Content) {
	var system []string
	var dialogue []*genai.Content
	lastUser := -1
	for _, t := range turns {
		switch t.Role {
		case models.RoleSystem:
			system = append(system, t.Content)
		case models.RoleAssistant:
			dialogue = append(dialogue, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(t.Content)}})
		default:
			lastUser = len(dialogue)
			dialogue = append(dialogue, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(t.Content)}})
		}
	}
	if lastUser < 0 {
		return strings.Join(system, "\n\n"), nil, nil
	}
	return strings.Join(system, "\n\n"), dialogue[:lastUser], dialogue[lastUser]
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

type GeminiEmbedder struct {
	model  string
	client *genai.Client
	guard  *Guard
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, guard *Guard) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: %w", ErrNotConfigured)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{model: model, client: client, guard: guard}, nil
}

func (e *GeminiEmbedder) Model() string { return e.model }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.guard.Execute(ctx, "google.embed_content", func(ctx context.Context) (interface{}, error) {
		return e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	})
	if err != nil {
		return nil, asProviderError("google", err)
	}

	resp := result.(*genai.EmbedContentResponse)
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding.Values, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
