// Package model defines data structures for the chat platform.
package model

import (
	"time"
)

// DefaultConversationTitle is used until the first user message names the conversation.
const DefaultConversationTitle = "New conversation"

// TitleMaxRunes is the length at which a derived title is cut.
const TitleMaxRunes = 50

// Conversation represents a conversation thread owned by one user.
type Conversation struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     uint64    `gorm:"not null;index" json:"user_id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Model      string    `gorm:"size:100;not null" json:"model"`
	IsArchived bool      `gorm:"not null;default:false;index" json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// ConversationSummary is a list row annotated with message statistics.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	IsArchived   bool      `json:"is_archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
	TotalTokens  int64     `json:"total_tokens"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

// RenameConversationRequest is the request to change a conversation title.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// ArchiveConversationRequest toggles the archived flag. A missing value archives.
type ArchiveConversationRequest struct {
	Archived *bool `json:"archived"`
}

// ListConversationsQuery selects one page of a user's conversations.
type ListConversationsQuery struct {
	Archived bool
	Page     int
	Limit    int
}

// Pagination describes the page returned by a list call.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// TitleFromMessage derives a conversation title from the first user message.
func TitleFromMessage(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxRunes {
		return content
	}
	return string(runes[:TitleMaxRunes]) + "..."
}
