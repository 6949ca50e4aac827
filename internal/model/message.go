package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a conversation message. Messages are append-only.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index" json:"conversation_id"`
	Role           Role      `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	TokensUsed     *int      `json:"tokens_used,omitempty"` // assistant messages only
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse carries the updated conversation and the assistant reply.
type SendMessageResponse struct {
	Conversation *Conversation `json:"conversation"`
	NewMessage   *Message      `json:"newMessage"`
}
