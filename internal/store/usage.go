package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amiaygpt/chat-platform/internal/model"
)

// RecordUsage adds one sent message and tokensUsed tokens to the user's
// counters for date (YYYY-MM-DD). Calling it twice counts twice.
func (s *Store) RecordUsage(ctx context.Context, userID uint64, date string, tokensUsed int) error {
	stat := &model.UsageStat{
		UserID:       userID,
		Date:         date,
		MessagesSent: 1,
		TokensUsed:   int64(tokensUsed),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"messages_sent": gorm.Expr("usage_stats.messages_sent + ?", 1),
			"tokens_used":   gorm.Expr("usage_stats.tokens_used + ?", tokensUsed),
		}),
	}).Create(stat).Error
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// ListUsage returns the user's stats for dates in [from, to], oldest first.
func (s *Store) ListUsage(ctx context.Context, userID uint64, from, to string) ([]model.UsageStat, error) {
	stats := make([]model.UsageStat, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, from, to).
		Order("date ASC").
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	return stats, nil
}
