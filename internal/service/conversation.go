// Package service provides business logic for the chat platform.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
	"github.com/amiaygpt/chat-platform/pkg/metrics"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
	maxTitleRunes   = 255
)

// ConversationService handles conversation operations.
type ConversationService struct {
	store        *store.Store
	events       *emitter
	logger       *logger.Logger
	defaultModel string
}

// NewConversationService creates a new conversation service.
func NewConversationService(st *store.Store, events EventPublisher, defaultModel string, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:        st,
		events:       &emitter{publisher: events, logger: log, now: func() time.Time { return time.Now().UTC() }},
		logger:       log,
		defaultModel: defaultModel,
	}
}

// Create creates a new conversation, applying the default title and model.
func (s *ConversationService) Create(ctx context.Context, userID uint64, req *model.CreateConversationRequest) (*model.Conversation, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = model.DefaultConversationTitle
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return nil, apperr.Validation(apperr.CodeValidationFailed, "invalid data",
			apperr.FieldError{Field: "title", Message: "title must be at most 255 characters"})
	}

	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = s.defaultModel
	}

	conv, err := s.store.CreateConversation(ctx, userID, title, modelName)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.Uint64("user_id", userID),
		zap.String("model", modelName),
	)
	s.events.emit(ctx, userID, conv.ID, model.EventTypeConversationCreated, "", map[string]any{"model": modelName})

	return conv, nil
}

// List returns one page of the user's conversations.
func (s *ConversationService) List(ctx context.Context, userID uint64, q model.ListConversationsQuery) (*model.ListConversationsResponse, error) {
	page := q.Page
	if page < 1 {
		page = defaultPage
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	rows, total, err := s.store.ListConversations(ctx, userID, q.Archived, limit, (page-1)*limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &model.ListConversationsResponse{
		Conversations: rows,
		Pagination: model.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

// Get returns a conversation with its messages in order.
func (s *ConversationService) Get(ctx context.Context, userID uint64, id string) (*model.Conversation, error) {
	conv, err := s.store.GetConversationWithMessages(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return conv, nil
}

// Rename sets a new title.
func (s *ConversationService) Rename(ctx context.Context, userID uint64, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperr.Validation(apperr.CodeTitleRequired, "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return apperr.Validation(apperr.CodeValidationFailed, "invalid data",
			apperr.FieldError{Field: "title", Message: "title must be at most 255 characters"})
	}

	if err := s.store.RenameConversation(ctx, userID, id, title); err != nil {
		return notFoundOr(err)
	}
	return nil
}

// SetArchived archives or restores a conversation.
func (s *ConversationService) SetArchived(ctx context.Context, userID uint64, id string, archived bool) error {
	if err := s.store.SetArchived(ctx, userID, id, archived); err != nil {
		return notFoundOr(err)
	}
	return nil
}

// Delete removes a conversation and all of its messages.
func (s *ConversationService) Delete(ctx context.Context, userID uint64, id string) error {
	if err := s.store.DeleteConversation(ctx, userID, id); err != nil {
		return notFoundOr(err)
	}

	s.logger.Info("conversation deleted",
		zap.String("conversation_id", id),
		zap.Uint64("user_id", userID),
	)
	s.events.emit(ctx, userID, id, model.EventTypeConversationDeleted, "", nil)
	return nil
}

func conversationNotFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeConversationNotFound, "conversation not found")
}

func notFoundOr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return conversationNotFound()
	}
	return apperr.Internal(err)
}
