package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeConversationCreated EventType = "conversation.created"
	EventTypeConversationDeleted EventType = "conversation.deleted"
	EventTypeMessageCompleted    EventType = "message.completed"
	EventTypeCompletionFailed    EventType = "completion.failed"
)

// ConversationEvent is a lifecycle record written to the event log.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         uint64         `json:"user_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
