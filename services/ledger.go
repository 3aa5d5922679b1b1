package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"trivia-achievement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WeekOf computes the score-week bucket for t. The same formula is used by
// the ledger, the rule engine and reconciliation so weekly rows always line
// up: week = ceil((dayOfYear + startOfYearWeekday) / 7).
func WeekOf(t time.Time) (week, year int) {
	year = t.Year()
	startWeekday := int(time.Date(year, time.January, 1, 0, 0, 0, 0, t.Location()).Weekday())
	week = (t.YearDay() + startWeekday + 6) / 7
	return week, year
}

// SessionSummary aggregates one session's responses for display.
type SessionSummary struct {
	SessionID             uint           `json:"session_id"`
	TotalResponses        int            `json:"total_responses"`
	CorrectAnswers        int            `json:"correct_answers"`
	BestStreak            int            `json:"best_streak"`
	AverageResponseTimeMs int            `json:"average_response_time_ms"`
	PointsEarned          int64          `json:"points_earned"`
	Categories            map[string]int `json:"categories"` // canonical category → correct answers
}

// ScoreService owns all score-affecting writes: users, sessions, responses,
// streak history and weekly scores.
type ScoreService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewScoreService(db *gorm.DB) *ScoreService {
	return &ScoreService{DB: db, now: time.Now}
}

// EnsureUser finds or creates the user for a wallet address (idempotent).
// Addresses are matched and stored case-insensitively.
func (s *ScoreService) EnsureUser(walletAddress string) (*models.User, error) {
	wallet := strings.ToLower(strings.TrimSpace(walletAddress))
	if wallet == "" {
		return nil, fmt.Errorf("wallet address is required")
	}
	var user models.User
	err := s.DB.Where("wallet_address = ?", wallet).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user = models.User{WalletAddress: wallet}
	if err := s.DB.Create(&user).Error; err != nil {
		// lost the create race: another request inserted the same wallet
		if ferr := s.DB.Where("wallet_address = ?", wallet).First(&user).Error; ferr == nil {
			return &user, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByWallet looks up an existing user without creating one.
func (s *ScoreService) GetUserByWallet(walletAddress string) (*models.User, error) {
	wallet := strings.ToLower(strings.TrimSpace(walletAddress))
	var user models.User
	if err := s.DB.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// StartSession opens a new active session for the user.
func (s *ScoreService) StartSession(userID uint) (*models.GameSession, error) {
	session := models.GameSession{UserID: userID, Status: models.SessionActive}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession returns a session by id.
func (s *ScoreService) GetSession(sessionID uint) (*models.GameSession, error) {
	var session models.GameSession
	if err := s.DB.First(&session, sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// RecordResponse persists one answered question. Point and streak fields are
// written here, once, at creation time.
func (s *ScoreService) RecordResponse(resp *models.PlayerResponse) error {
	var session models.GameSession
	if err := s.DB.First(&session, resp.SessionID).Error; err != nil {
		return fmt.Errorf("session %d not found: %w", resp.SessionID, err)
	}
	if session.Status != models.SessionActive {
		return fmt.Errorf("session %d is %s", resp.SessionID, session.Status)
	}
	resp.Category = models.CategoryKey(resp.Category)
	return s.DB.Create(resp).Error
}

// CompleteSession applies the full completion transaction: session →
// completed, streak history, user accumulators, weekly score. All four steps
// commit or none do. Returns false without error when the session is already
// terminal, so a retried completion never double-credits points.
func (s *ScoreService) CompleteSession(sessionID, userID uint, finalScore int64, correctAnswers, totalQuestions, bestStreak int) (bool, error) {
	if finalScore < 0 || correctAnswers < 0 || totalQuestions < 0 || bestStreak < 0 {
		return false, fmt.Errorf("negative values are not allowed")
	}
	now := s.now()
	credited := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// The conditional update is the double-credit guard: only the one
		// caller that flips active → completed runs the rest.
		res := tx.Model(&models.GameSession{}).
			Where("id = ? AND user_id = ? AND status = ?", sessionID, userID, models.SessionActive).
			Updates(map[string]interface{}{"status": models.SessionCompleted, "ended_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var session models.GameSession
			if err := tx.First(&session, sessionID).Error; err != nil {
				return fmt.Errorf("session %d not found: %w", sessionID, err)
			}
			if session.UserID != userID {
				return fmt.Errorf("session %d does not belong to user %d", sessionID, userID)
			}
			// already completed or cancelled; nothing to credit
			return nil
		}
		credited = true

		if bestStreak > 0 {
			entry := models.StreakHistoryEntry{
				ID:           uuid.NewString(),
				UserID:       userID,
				SessionID:    sessionID,
				StreakCount:  bestStreak,
				PointsEarned: finalScore,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		res = tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"total_points":   gorm.Expr("total_points + ?", finalScore),
			"games_played":   gorm.Expr("games_played + ?", 1),
			"last_played_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %d not found", userID)
		}
		if err := tx.Model(&models.User{}).
			Where("id = ? AND best_streak < ?", userID, bestStreak).
			Update("best_streak", bestStreak).Error; err != nil {
			return err
		}

		week, year := WeekOf(now)
		weekly := models.WeeklyScore{UserID: userID, Week: week, Year: year, Score: finalScore}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "week"}, {Name: "year"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"score": gorm.Expr("weekly_scores.score + ?", finalScore)}),
		}).Create(&weekly).Error
	})
	if err != nil {
		return false, err
	}
	if credited {
		log.Printf("🏁 Session %d completed: user=%d score=%d correct=%d/%d streak=%d",
			sessionID, userID, finalScore, correctAnswers, totalQuestions, bestStreak)
	}
	return credited, nil
}

// CancelSession abandons an active session. Terminal sessions are left
// untouched; re-invocation is a no-op success.
func (s *ScoreService) CancelSession(sessionID uint) error {
	now := s.now()
	return s.DB.Model(&models.GameSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Updates(map[string]interface{}{"status": models.SessionCancelled, "ended_at": now}).Error
}

// GetSessionSummary aggregates a session's responses for display.
func (s *ScoreService) GetSessionSummary(sessionID uint) (*SessionSummary, error) {
	var session models.GameSession
	if err := s.DB.First(&session, sessionID).Error; err != nil {
		return nil, err
	}
	var responses []models.PlayerResponse
	if err := s.DB.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&responses).Error; err != nil {
		return nil, err
	}

	summary := SessionSummary{SessionID: sessionID, Categories: map[string]int{}}
	totalTime := 0
	for _, r := range responses {
		summary.TotalResponses++
		totalTime += r.ResponseTimeMs
		summary.PointsEarned += int64(r.PointsEarned)
		if r.IsCorrect {
			summary.CorrectAnswers++
			summary.Categories[r.Category]++
		}
		if r.StreakCount > summary.BestStreak {
			summary.BestStreak = r.StreakCount
		}
	}
	if summary.TotalResponses > 0 {
		summary.AverageResponseTimeMs = totalTime / summary.TotalResponses
	}
	return &summary, nil
}

// GetWeeklyLeaderboard returns the top weekly scores for a (week, year),
// newest-first on ties broken by user id for a stable order.
func (s *ScoreService) GetWeeklyLeaderboard(week, year, limit int) ([]models.WeeklyScore, error) {
	if limit < 1 || limit > 100 {
		limit = 25
	}
	var rows []models.WeeklyScore
	err := s.DB.Where("week = ? AND year = ?", week, year).
		Order("score DESC, user_id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
