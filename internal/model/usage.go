package model

// UsageDateLayout is the calendar-date format of UsageStat.Date.
const UsageDateLayout = "2006-01-02"

// UsageStat is a per-user per-day additive counter.
type UsageStat struct {
	UserID       uint64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Date         string `gorm:"primaryKey;size:10" json:"date"`
	MessagesSent int64  `gorm:"not null;default:0" json:"messages_sent"`
	TokensUsed   int64  `gorm:"not null;default:0" json:"tokens_used"`
}

// UsageResponse is the response of GET /usage.
type UsageResponse struct {
	From              string      `json:"from"`
	To                string      `json:"to"`
	Days              []UsageStat `json:"days"`
	TotalMessagesSent int64       `json:"total_messages_sent"`
	TotalTokensUsed   int64       `json:"total_tokens_used"`
}
