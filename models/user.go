package models

import (
	"time"

	"gorm.io/gorm"
)

// Session statuses. completed and cancelled are terminal.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// User is created on first sight of a wallet address. Score-affecting fields
// are written only by the score ledger and the reconciliation job.
type User struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	WalletAddress string `gorm:"uniqueIndex;not null" json:"wallet_address"` // stored lower-cased

	TotalPoints int64 `json:"total_points" gorm:"default:0"`
	GamesPlayed int64 `json:"games_played" gorm:"default:0"`
	BestStreak  int   `json:"best_streak" gorm:"default:0"`

	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`

	Timestamps
}

// GameSession transitions active → completed or active → cancelled, once.
// Terminal sessions are never reopened.
type GameSession struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	Status    string     `gorm:"type:varchar(16);default:'active';index" json:"status"`
	StartedAt time.Time  `gorm:"autoCreateTime" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// PlayerResponse is immutable after creation except for the point/streak
// fields, which are written at most once per response.
type PlayerResponse struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UserID          uint   `gorm:"index;not null" json:"user_id"`
	SessionID       uint   `gorm:"index;not null" json:"session_id"`
	QuestionID      string `gorm:"not null" json:"question_id"`
	Category        string `gorm:"index;not null" json:"category"` // canonical category key
	IsCorrect       bool   `json:"is_correct"`
	StreakCount     int    `json:"streak_count"` // in-session streak at time of answer
	ResponseTimeMs  int    `json:"response_time_ms"`
	PointsEarned    int    `json:"points_earned"`
	PotentialPoints int    `json:"potential_points"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
