package services

import (
	"context"
	"time"

	"humana-api/internal/ai"
	"humana-api/internal/logger"
	"humana-api/internal/rag"
	"humana-api/models"
	"humana-api/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ContextRetriever yields reference text for a question. It must not fail;
// an empty string means no context.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) string
}

// ChatService answers one conversation turn: validate, retrieve, prompt,
// complete. Each external dependency is called at most once per request.
type ChatService struct {
	completer ai.Completer
	provider  string
	retriever ContextRetriever
	options   ai.CompletionOptions
	timeout   time.Duration
}

// NewChatService accepts a nil completer; Reply then reports the provider
// as not configured.
func NewChatService(completer ai.Completer, provider string, retriever ContextRetriever, options ai.CompletionOptions, timeout time.Duration) *ChatService {
	return &ChatService{
		completer: completer,
		provider:  provider,
		retriever: retriever,
		options:   options,
		timeout:   timeout,
	}
}

func (s *ChatService) Reply(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, *utils.AppError) {
	ctx, span := otel.Tracer("humana-api/services").Start(ctx, "chat.reply")
	defer span.End()
	log := logger.FromContext(ctx)

	log.Debug("chat stage", "stage", "validating")
	if appErr := utils.ValidateStruct(req); appErr != nil {
		return nil, appErr
	}

	// Checked before retrieval so an unconfigured deployment makes no outbound calls.
	if s.completer == nil {
		return nil, utils.NewNotConfiguredError(s.provider)
	}

	log.Debug("chat stage", "stage", "retrieving_context")
	start := time.Now()
	var retrieved string
	if question, ok := req.LatestUserTurn(); ok && s.retriever != nil {
		retrieved = s.retriever.Retrieve(ctx, question)
	}
	span.SetAttributes(
		attribute.Int64("chat.retrieval_ms", time.Since(start).Milliseconds()),
		attribute.Bool("chat.context_found", retrieved != ""),
	)

	log.Debug("chat stage", "stage", "prompting")
	turns := make([]models.ChatTurn, 0, len(req.Messages)+1)
	turns = append(turns, models.ChatTurn{Role: models.RoleSystem, Content: AssembleSystemPrompt(req.Language, retrieved)})
	turns = append(turns, req.Messages...)

	log.Debug("chat stage", "stage", "completing")
	start = time.Now()
	cctx, cancel := utils.WithCustomTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.completer.Complete(cctx, turns, s.options)
	span.SetAttributes(attribute.Int64("chat.completion_ms", time.Since(start).Milliseconds()))
	if err != nil {
		log.Error("Completion failed", "provider", s.provider, "error", err)
		return nil, utils.NewDependencyError("chat_error", err)
	}

	log.Debug("chat stage", "stage", "responding")
	return &models.ChatResponse{Reply: reply}, nil
}

// Compile-time check that the rag retriever satisfies ContextRetriever.
var _ ContextRetriever = (*rag.Retriever)(nil)
