package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/pkg/logger"
	"github.com/amiaygpt/chat-platform/pkg/metrics"
)

const publishTimeout = 2 * time.Second

// EventPublisher writes conversation events to the event log.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// NopPublisher discards events. Used when no event log is configured.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, *model.ConversationEvent) (uint64, error) {
	return 0, nil
}

// emitter publishes events best effort: failures are logged and counted,
// never returned to the caller.
type emitter struct {
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

func (e *emitter) emit(ctx context.Context, userID uint64, conversationID string, eventType model.EventType, reason string, metadata map[string]any) {
	if e.publisher == nil {
		return
	}

	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           eventType,
		Reason:         reason,
		Metadata:       metadata,
		CreatedAt:      e.now(),
	}

	// The request may already be cancelled; the event still goes out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := e.publisher.Publish(ctx, event); err != nil {
		metrics.EventsPublishFailures.Inc()
		e.logger.Warn("failed to publish conversation event",
			zap.String("conversation_id", conversationID),
			zap.String("type", string(eventType)),
			zap.Error(err),
		)
	}
}
