package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/amiaygpt/chat-platform/internal/model"
)

// AppendMessage inserts a message. When it is the first message of the
// conversation and was written by the user, the conversation title is derived
// from its content in the same transaction.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role model.Role, content string, tokensUsed *int) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokensUsed:     tokensUsed,
		CreatedAt:      s.now(),
	}

	err := s.WithTx(ctx, func(tx *Store) error {
		if err := tx.db.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to insert message: %w", translate(err))
		}

		if role != model.RoleUser {
			return nil
		}

		var count int64
		if err := tx.db.Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}
		if count != 1 {
			return nil
		}

		err := tx.db.Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"title":      model.TitleFromMessage(content),
				"updated_at": tx.now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to set conversation title: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// ListMessages returns a conversation's messages in creation order. Callers
// must have checked ownership of the conversation.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return messages, nil
}
