package service

import (
	"context"
	"time"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/store"
)

const (
	defaultUsageDays = 30
	maxUsageDays     = 365
)

// UsageService reports per-day usage counters.
type UsageService struct {
	store *store.Store
	now   func() time.Time
}

// NewUsageService creates a new usage service.
func NewUsageService(st *store.Store) *UsageService {
	return &UsageService{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the last days calendar days of usage, today included.
func (s *UsageService) Summary(ctx context.Context, userID uint64, days int) (*model.UsageResponse, error) {
	if days < 1 {
		days = defaultUsageDays
	}
	if days > maxUsageDays {
		days = maxUsageDays
	}

	today := s.now()
	from := today.AddDate(0, 0, -(days - 1)).Format(model.UsageDateLayout)
	to := today.Format(model.UsageDateLayout)

	stats, err := s.store.ListUsage(ctx, userID, from, to)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	resp := &model.UsageResponse{From: from, To: to, Days: stats}
	for _, st := range stats {
		resp.TotalMessagesSent += st.MessagesSent
		resp.TotalTokensUsed += st.TokensUsed
	}
	return resp, nil
}
