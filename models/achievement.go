package models

import (
	"time"
)

// Achievement: one row per (user, canonical achievement type). The unique
// index on the canonical key is the storage-level guard against the
// case-variant duplicates the reconciliation job exists to clean up.
type Achievement struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          uint   `gorm:"not null;uniqueIndex:idx_user_achievement_type" json:"user_id"`
	AchievementType string `gorm:"not null;uniqueIndex:idx_user_achievement_type" json:"achievement_type"` // canonical, see registry.go

	Score           int `json:"score" gorm:"default:0"`
	WeekNumber      int `json:"week_number,omitempty"`
	Year            int `json:"year,omitempty"`
	StreakMilestone int `json:"streak_milestone,omitempty"`
	FastestResponse int `json:"fastest_response,omitempty"` // ms

	MintedAt  time.Time `gorm:"autoCreateTime" json:"minted_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// StreakHistoryEntry is append-only: one row per session completion that
// ended with a positive streak.
type StreakHistoryEntry struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	SessionID    uint      `gorm:"index;not null" json:"session_id"`
	StreakCount  int       `json:"streak_count"`
	PointsEarned int64     `json:"points_earned"`
	RecordedAt   time.Time `gorm:"autoCreateTime" json:"recorded_at"`
}

// WeeklyScore is a strictly additive accumulator keyed by (user, week, year).
type WeeklyScore struct {
	ID     uint  `gorm:"primaryKey" json:"id"`
	UserID uint  `gorm:"not null;uniqueIndex:idx_user_week_year" json:"user_id"`
	Week   int   `gorm:"not null;uniqueIndex:idx_user_week_year" json:"week"`
	Year   int   `gorm:"not null;uniqueIndex:idx_user_week_year" json:"year"`
	Score  int64 `json:"score" gorm:"default:0"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RateLimitAudit records a denied request against a real session. Only
// violations carrying a numeric session id that resolves to a stored session
// are persisted; everything else stays in the process log.
type RateLimitAudit struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    uint      `gorm:"index;not null" json:"session_id"`
	Action       string    `gorm:"not null" json:"action"`
	ActivityType string    `json:"activity_type"`
	Count        int       `json:"count"`
	OccurredAt   time.Time `gorm:"autoCreateTime" json:"occurred_at"`
}
