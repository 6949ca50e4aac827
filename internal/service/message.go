package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/llm"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
	"github.com/amiaygpt/chat-platform/pkg/metrics"
)

// CompletionSettings are the parameters of every completion call.
type CompletionSettings struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
}

// MessageService runs the send flow: persist the user turn, ask the
// completion provider, persist the reply and account for usage.
type MessageService struct {
	store    *store.Store
	llm      llm.Client
	settings CompletionSettings
	locks    *keyedMutex
	events   *emitter
	tracer   trace.Tracer
	logger   *logger.Logger
	now      func() time.Time
}

// NewMessageService creates a new message service.
func NewMessageService(
	st *store.Store,
	llmClient llm.Client,
	settings CompletionSettings,
	events EventPublisher,
	log *logger.Logger,
) *MessageService {
	now := func() time.Time { return time.Now().UTC() }
	return &MessageService{
		store:    st,
		llm:      llmClient,
		settings: settings,
		locks:    newKeyedMutex(),
		events:   &emitter{publisher: events, logger: log, now: now},
		tracer:   otel.Tracer("github.com/amiaygpt/chat-platform/internal/service"),
		logger:   log,
		now:      now,
	}
}

// Send appends a user message to a conversation and generates the assistant
// reply. The user message stays persisted when the completion call fails.
func (s *MessageService) Send(ctx context.Context, userID uint64, conversationID, text string) (*model.SendMessageResponse, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, apperr.Validation(apperr.CodeMessageRequired, "message is required")
	}

	ctx, span := s.tracer.Start(ctx, "MessageService.Send", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conv, err := s.store.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	if _, err := s.store.AppendMessage(ctx, conversationID, model.RoleUser, content, nil); err != nil {
		return nil, apperr.Internal(err)
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	modelName := conv.Model
	if modelName == "" {
		modelName = s.settings.DefaultModel
	}
	span.SetAttributes(attribute.String("llm.model", modelName), attribute.Int("llm.history", len(history)))

	resp, err := s.complete(ctx, modelName, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, s.completionFailed(ctx, userID, conversationID, modelName, err)
	}

	tokens := resp.TotalTokens()
	var reply *model.Message
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		msg, err := tx.AppendMessage(ctx, conversationID, model.RoleAssistant, resp.Content, &tokens)
		if err != nil {
			return err
		}
		if err := tx.TouchConversation(ctx, conversationID); err != nil {
			return err
		}
		if err := tx.RecordUsage(ctx, userID, s.now().Format(model.UsageDateLayout), tokens); err != nil {
			return err
		}
		reply = msg
		return nil
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()

	s.events.emit(ctx, userID, conversationID, model.EventTypeMessageCompleted, "", map[string]any{
		"model":       modelName,
		"tokens_used": tokens,
		"latency_ms":  resp.LatencyMs,
	})

	updated, err := s.store.GetConversationWithMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	return &model.SendMessageResponse{
		Conversation: updated,
		NewMessage:   reply,
	}, nil
}

func (s *MessageService) complete(ctx context.Context, modelName string, history []model.Message) (*llm.CompletionResponse, error) {
	messages := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordCompletion(s.llm.Name(), modelName, "error", elapsed, 0, 0)
		return nil, err
	}
	metrics.RecordCompletion(s.llm.Name(), modelName, "ok", elapsed, resp.TokensIn, resp.TokensOut)
	return resp, nil
}

func (s *MessageService) completionFailed(ctx context.Context, userID uint64, conversationID, modelName string, err error) error {
	reason := "upstream"
	switch {
	case errors.Is(err, llm.ErrQuotaExceeded):
		reason = "quota"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, llm.ErrNotConfigured):
		reason = "not_configured"
	}
	metrics.CompletionFailuresTotal.WithLabelValues(reason).Inc()

	s.logger.Error("completion failed",
		zap.String("conversation_id", conversationID),
		zap.Uint64("user_id", userID),
		zap.String("model", modelName),
		zap.String("reason", reason),
		zap.Error(err),
	)
	s.events.emit(ctx, userID, conversationID, model.EventTypeCompletionFailed, reason, map[string]any{"model": modelName})

	if reason == "quota" {
		return &apperr.Error{
			Kind:    apperr.KindQuotaExceeded,
			Code:    apperr.CodeQuotaExceeded,
			Message: "completion quota exceeded",
			Err:     err,
		}
	}
	return &apperr.Error{
		Kind:    apperr.KindUpstream,
		Code:    apperr.CodeCompletionFailed,
		Message: "error while communicating with the AI",
		Details: err.Error(),
		Err:     err,
	}
}

// keyedMutex serializes work per key. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
