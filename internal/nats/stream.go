package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/amiaygpt/chat-platform/internal/model"
)

const (
	// StreamName is the name of the chat event stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat"

	eventRetention = 90 * 24 * time.Hour
)

// EventLog publishes conversation lifecycle events to JetStream.
type EventLog struct {
	js jetstream.JetStream
}

// NewEventLog creates an event log on top of a connected client.
func NewEventLog(client *Client) *EventLog {
	return &EventLog{js: client.JetStream()}
}

// StreamConfig returns the configuration of the chat event stream.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      eventRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Conversation lifecycle and completion events",
	}
}

// EnsureStream creates the event stream if it does not exist yet.
func (l *EventLog) EnsureStream(ctx context.Context) error {
	_, err := l.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	if _, err := l.js.CreateStream(ctx, StreamConfig()); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(userID uint64, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, strconv.FormatUint(userID, 10), conversationID, eventType)
}

// ConversationFilter returns the filter subject for all events of a conversation.
func ConversationFilter(userID uint64, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, strconv.FormatUint(userID, 10), conversationID)
}

// Publish writes an event to JetStream and returns its stream sequence.
func (l *EventLog) Publish(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	subject := EventSubject(event.UserID, event.ConversationID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := l.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}
