package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"humana-api/internal/telemetry"
	"humana-api/models"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// newOpenAIClient builds a client for any OpenAI-compatible endpoint. Mistral
// exposes the same chat and embeddings surface under its own base URL.
func newOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// asProviderError keeps only the provider's message text.
func asProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return err
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: provider, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &ProviderError{Provider: provider, StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

type OpenAICompleter struct {
	provider     string
	defaultModel string
	client       *openai.Client
	guard        *Guard
	metrics      *telemetry.Metrics
}

func NewOpenAICompleter(provider, apiKey, baseURL, defaultModel string, guard *Guard, metrics *telemetry.Metrics) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrNotConfigured)
	}
	return &OpenAICompleter{
		provider:     provider,
		defaultModel: defaultModel,
		client:       newOpenAIClient(apiKey, baseURL, nil),
		guard:        guard,
		metrics:      metrics,
	}, nil
}

func (c *OpenAICompleter) Provider() string { return c.provider }

func (c *OpenAICompleter) Complete(ctx context.Context, turns []models.ChatTurn, opts CompletionOptions) (string, error) {
	opts = opts.normalized(c.defaultModel)

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	// go-openai drops a zero temperature from the payload, which providers
	// read as their own default.
	temperature := float32(opts.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   opts.MaxTokens,
	}

	result, err := c.guard.Execute(ctx, c.provider+".chat_completion", func(ctx context.Context) (interface{}, error) {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("llm.provider", c.provider),
			attribute.String("llm.model", opts.Model),
			attribute.Int("llm.turns", len(messages)),
		)
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", asProviderError(c.provider, err)
	}

	resp := result.(openai.ChatCompletionResponse)
	c.metrics.RecordTokensUsed(int64(resp.Usage.TotalTokens), c.provider, opts.Model)
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

type OpenAIEmbedder struct {
	provider string
	model    string
	client   *openai.Client
	guard    *Guard
}

func NewOpenAIEmbedder(provider, apiKey, baseURL, model string, guard *Guard) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrNotConfigured)
	}
	return &OpenAIEmbedder{
		provider: provider,
		model:    model,
		client:   newOpenAIClient(apiKey, baseURL, nil),
		guard:    guard,
	}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.guard.Execute(ctx, e.provider+".embeddings", func(ctx context.Context) (interface{}, error) {
		return e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.model),
		})
	})
	if err != nil {
		return nil, asProviderError(e.provider, err)
	}

	resp := result.(openai.EmbeddingResponse)
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}
