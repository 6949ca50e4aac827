package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/amiaygpt/chat-platform/internal/model"
)

// CreateConversation inserts a conversation with a fresh id.
func (s *Store) CreateConversation(ctx context.Context, userID uint64, title, modelName string) (*model.Conversation, error) {
	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		Model:     modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", translate(err))
	}
	return conv, nil
}

// GetConversation returns a conversation owned by userID without its messages.
func (s *Store) GetConversation(ctx context.Context, userID uint64, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// GetConversationWithMessages returns a conversation owned by userID with its
// messages in creation order.
func (s *Store) GetConversationWithMessages(ctx context.Context, userID uint64, id string) (*model.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages
	return conv, nil
}

// ListConversations returns one page of a user's conversations, most recently
// updated first, along with the total number of matching rows.
func (s *Store) ListConversations(ctx context.Context, userID uint64, archived bool, limit, offset int) ([]model.ConversationSummary, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	err := db.Model(&model.Conversation{}).
		Where("user_id = ? AND is_archived = ?", userID, archived).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows := make([]model.ConversationSummary, 0, limit)
	err = db.Table("conversations AS c").
		Select(`c.id, c.title, c.model, c.is_archived, c.created_at, c.updated_at,
			COUNT(m.id) AS message_count,
			COALESCE(SUM(m.tokens_used), 0) AS total_tokens`).
		Joins("LEFT JOIN messages m ON m.conversation_id = c.id").
		Where("c.user_id = ? AND c.is_archived = ?", userID, archived).
		Group("c.id, c.title, c.model, c.is_archived, c.created_at, c.updated_at").
		Order("c.updated_at DESC, c.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}

	return rows, total, nil
}

// RenameConversation sets the title of a conversation owned by userID.
func (s *Store) RenameConversation(ctx context.Context, userID uint64, id, title string) error {
	return s.updateOwned(ctx, userID, id, map[string]interface{}{"title": title})
}

// SetArchived sets the archived flag of a conversation owned by userID.
func (s *Store) SetArchived(ctx context.Context, userID uint64, id string, archived bool) error {
	return s.updateOwned(ctx, userID, id, map[string]interface{}{"is_archived": archived})
}

// TouchConversation bumps updated_at.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation owned by userID and its messages.
func (s *Store) DeleteConversation(ctx context.Context, userID uint64, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.GetConversation(ctx, userID, id); err != nil {
			return err
		}
		if err := tx.db.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{}).Error; err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return nil
	})
}

func (s *Store) updateOwned(ctx context.Context, userID uint64, id string, values map[string]interface{}) error {
	values["updated_at"] = s.now()
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
