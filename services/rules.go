package services

import (
	"fmt"
	"sort"
	"time"

	"trivia-achievement-system/models"

	"gorm.io/gorm"
)

// Rule thresholds.
const (
	streakTierLow       = 3
	streakTierHigh      = 5
	speedDemonMs        = 2000
	masteryThreshold    = 50
	perfectRoundMinSize = 10
	collectorThreshold  = 11
	dailyStreakDays     = 7
)

// ResponseEvent is the per-answer input to the rule engine.
type ResponseEvent struct {
	UserID         uint
	SessionID      uint
	Category       string
	IsCorrect      bool
	StreakCount    int
	ResponseTimeMs int
}

// RuleService evaluates achievement predicates against stored history and
// hands qualifying keys to the recorder. Every entry point is best-effort
// from the caller's point of view: errors are returned for logging, never to
// block a score write.
type RuleService struct {
	DB       *gorm.DB
	Recorder *AchievementService
	now      func() time.Time
}

func NewRuleService(db *gorm.DB, recorder *AchievementService) *RuleService {
	return &RuleService{DB: db, Recorder: recorder, now: time.Now}
}

// EvaluateResponse runs the per-answer rules: streak tiers and speed.
// Returns the set of achievement types newly created or raised.
func (s *RuleService) EvaluateResponse(ev ResponseEvent) ([]models.AchievementType, error) {
	var unlocked []models.AchievementType

	got, err := s.recordStreakTiers(ev.UserID, ev.StreakCount)
	if err != nil {
		return unlocked, err
	}
	unlocked = append(unlocked, got...)

	if ev.IsCorrect && ev.ResponseTimeMs < speedDemonMs {
		var fastCount int64
		if err := s.DB.Model(&models.PlayerResponse{}).
			Where("user_id = ? AND is_correct = ? AND response_time_ms < ?", ev.UserID, true, speedDemonMs).
			Count(&fastCount).Error; err != nil {
			return unlocked, err
		}
		if fastCount == 0 {
			fastCount = 1 // the triggering response may not be committed yet
		}
		outcome, err := s.Recorder.Record(ev.UserID, string(models.TypeSpeedDemon), int(fastCount),
			RecordExtras{FastestResponse: ev.ResponseTimeMs})
		if err != nil {
			return unlocked, err
		}
		if outcome != RecordUnchanged {
			unlocked = append(unlocked, models.TypeSpeedDemon)
		}
	}
	return unlocked, nil
}

// EvaluateSession runs the session-level rules after a completed session:
// streak milestones, perfect round, category mastery, category collector and
// the daily streak.
func (s *RuleService) EvaluateSession(userID, sessionID uint, bestStreak int) ([]models.AchievementType, error) {
	var unlocked []models.AchievementType

	got, err := s.recordStreakTiers(userID, bestStreak)
	if err != nil {
		return unlocked, err
	}
	unlocked = append(unlocked, got...)

	var responses []models.PlayerResponse
	if err := s.DB.Where("session_id = ?", sessionID).Find(&responses).Error; err != nil {
		return unlocked, err
	}

	if len(responses) >= perfectRoundMinSize {
		perfect := true
		for _, r := range responses {
			if !r.IsCorrect {
				perfect = false
				break
			}
		}
		if perfect {
			week, year := WeekOf(s.now())
			outcome, err := s.Recorder.Record(userID, string(models.TypePerfectRound), len(responses),
				RecordExtras{WeekNumber: week, Year: year})
			if err != nil {
				return unlocked, err
			}
			if outcome != RecordUnchanged {
				unlocked = append(unlocked, models.TypePerfectRound)
			}
		}
	}

	categories := map[string]bool{}
	for _, r := range responses {
		if r.IsCorrect {
			categories[r.Category] = true
		}
	}
	for category := range categories {
		got, err := s.checkCategoryMastery(userID, category)
		if err != nil {
			return unlocked, err
		}
		unlocked = append(unlocked, got...)
	}

	got, err = s.checkCategoryCollector(userID)
	if err != nil {
		return unlocked, err
	}
	unlocked = append(unlocked, got...)

	got, err = s.checkDailyStreak(userID)
	if err != nil {
		return unlocked, err
	}
	unlocked = append(unlocked, got...)

	return unlocked, nil
}

// RecordWalletVerified mints the one-off wallet-verification flag. Triggered
// by an external event, not gameplay.
func (s *RuleService) RecordWalletVerified(userID uint) (RecordOutcome, error) {
	return s.Recorder.Record(userID, string(models.TypeWalletVerified), 1, RecordExtras{})
}

// recordStreakTiers fires the independent streak flags. Both tiers fire on a
// streak of 5 or more.
func (s *RuleService) recordStreakTiers(userID uint, streak int) ([]models.AchievementType, error) {
	var unlocked []models.AchievementType
	tiers := []struct {
		threshold int
		t         models.AchievementType
	}{
		{streakTierLow, models.TypeStreak3},
		{streakTierHigh, models.TypeStreak5},
	}
	for _, tier := range tiers {
		if streak < tier.threshold {
			continue
		}
		outcome, err := s.Recorder.Record(userID, string(tier.t), streak,
			RecordExtras{StreakMilestone: tier.threshold})
		if err != nil {
			return unlocked, fmt.Errorf("record %s: %w", tier.t, err)
		}
		if outcome != RecordUnchanged {
			unlocked = append(unlocked, tier.t)
		}
	}
	return unlocked, nil
}

func (s *RuleService) checkCategoryMastery(userID uint, category string) ([]models.AchievementType, error) {
	var count int64
	if err := s.DB.Model(&models.PlayerResponse{}).
		Where("user_id = ? AND category = ? AND is_correct = ?", userID, category, true).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count < masteryThreshold {
		return nil, nil
	}
	masteryType := models.MasteryType(category)
	outcome, err := s.Recorder.Record(userID, string(masteryType), int(count), RecordExtras{})
	if err != nil {
		return nil, err
	}
	if outcome != RecordUnchanged {
		return []models.AchievementType{masteryType}, nil
	}
	return nil, nil
}

func (s *RuleService) checkCategoryCollector(userID uint) ([]models.AchievementType, error) {
	var categories []string
	if err := s.DB.Model(&models.PlayerResponse{}).
		Where("user_id = ? AND is_correct = ?", userID, true).
		Distinct().
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}
	if len(categories) < collectorThreshold {
		return nil, nil
	}
	outcome, err := s.Recorder.Record(userID, string(models.TypeCategoryCollector), len(categories), RecordExtras{})
	if err != nil {
		return nil, err
	}
	if outcome != RecordUnchanged {
		return []models.AchievementType{models.TypeCategoryCollector}, nil
	}
	return nil, nil
}

// checkDailyStreak awards the 7-day badge when the trailing window holds a
// strict day-difference-of-1 chain of activity. A gap of more than one day
// resets the consecutive-day counter to 1, never to 0.
func (s *RuleService) checkDailyStreak(userID uint) ([]models.AchievementType, error) {
	now := s.now()
	since := now.AddDate(0, 0, -(dailyStreakDays - 1)).Truncate(24 * time.Hour)

	var stamps []time.Time
	if err := s.DB.Model(&models.PlayerResponse{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Pluck("created_at", &stamps).Error; err != nil {
		return nil, err
	}

	seen := map[string]time.Time{}
	for _, ts := range stamps {
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		seen[day.Format("2006-01-02")] = day
	}
	days := make([]time.Time, 0, len(seen))
	for _, day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	consecutive := 0
	best := 0
	for i, day := range days {
		if i == 0 || int(day.Sub(days[i-1]).Hours()/24) == 1 {
			consecutive++
		} else {
			consecutive = 1
		}
		if consecutive > best {
			best = consecutive
		}
	}
	if best < dailyStreakDays {
		return nil, nil
	}
	outcome, err := s.Recorder.Record(userID, string(models.TypeDailyStreak7), best, RecordExtras{})
	if err != nil {
		return nil, err
	}
	if outcome != RecordUnchanged {
		return []models.AchievementType{models.TypeDailyStreak7}, nil
	}
	return nil, nil
}
