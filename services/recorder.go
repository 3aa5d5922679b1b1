package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"trivia-achievement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordOutcome says what Record did with an achievement.
type RecordOutcome string

const (
	RecordCreated   RecordOutcome = "created"
	RecordUpdated   RecordOutcome = "updated"
	RecordUnchanged RecordOutcome = "unchanged"
)

// RecordExtras carries the optional milestone fields stored on a row.
type RecordExtras struct {
	WeekNumber      int
	Year            int
	StreakMilestone int
	FastestResponse int
}

// UnlockEvent is handed to the notification worker on create or
// score-increase. Evaluation never waits on delivery.
type UnlockEvent struct {
	UserID uint                   `json:"user_id"`
	Type   models.AchievementType `json:"achievement_type"`
	Info   models.AchievementInfo `json:"info"`
	Score  int                    `json:"score"`
}

// AchievementService persists achievement rows with duplicate-proof
// semantics: types are canonicalized before the existence check, a per-user
// lock serializes check-then-act within the process, and the unique index on
// (user_id, achievement_type) backstops races across processes.
type AchievementService struct {
	DB      *gorm.DB
	Unlocks chan UnlockEvent

	mu        sync.Mutex
	userLocks map[uint]*sync.Mutex
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{
		DB:        db,
		Unlocks:   make(chan UnlockEvent, 256),
		userLocks: make(map[uint]*sync.Mutex),
	}
}

func (s *AchievementService) userLock(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// Record inserts or raises an achievement row. A stored score is never
// decreased, and a case-variant of an existing type never becomes a second
// row.
func (s *AchievementService) Record(userID uint, rawType string, score int, extras RecordExtras) (RecordOutcome, error) {
	achievementType := models.CanonicalType(rawType)

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	outcome, err := s.upsert(userID, achievementType, score, extras)
	if err != nil {
		return RecordUnchanged, err
	}
	if outcome != RecordUnchanged {
		s.emitUnlock(userID, achievementType, score)
	}
	return outcome, nil
}

func (s *AchievementService) upsert(userID uint, achievementType models.AchievementType, score int, extras RecordExtras) (RecordOutcome, error) {
	var existing models.Achievement
	err := s.DB.Where("user_id = ? AND LOWER(achievement_type) = ?", userID, string(achievementType)).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.Achievement{
			ID:              uuid.NewString(),
			UserID:          userID,
			AchievementType: string(achievementType),
			Score:           score,
			WeekNumber:      extras.WeekNumber,
			Year:            extras.Year,
			StreakMilestone: extras.StreakMilestone,
			FastestResponse: extras.FastestResponse,
			MintedAt:        time.Now(),
		}
		if err := s.DB.Create(&row).Error; err != nil {
			// unique index hit: another instance inserted first, retry as update
			if ferr := s.DB.Where("user_id = ? AND LOWER(achievement_type) = ?", userID, string(achievementType)).
				First(&existing).Error; ferr != nil {
				return RecordUnchanged, err
			}
		} else {
			return RecordCreated, nil
		}
	} else if err != nil {
		return RecordUnchanged, err
	}

	if existing.Score >= score {
		return RecordUnchanged, nil
	}
	updates := map[string]interface{}{"score": score}
	if extras.StreakMilestone > existing.StreakMilestone {
		updates["streak_milestone"] = extras.StreakMilestone
	}
	if extras.FastestResponse > 0 && (existing.FastestResponse == 0 || extras.FastestResponse < existing.FastestResponse) {
		updates["fastest_response"] = extras.FastestResponse
	}
	if err := s.DB.Model(&models.Achievement{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return RecordUnchanged, err
	}
	return RecordUpdated, nil
}

func (s *AchievementService) emitUnlock(userID uint, achievementType models.AchievementType, score int) {
	info, ok := models.DisplayInfo(achievementType)
	if !ok {
		info = models.AchievementInfo{Name: string(achievementType)}
	}
	event := UnlockEvent{UserID: userID, Type: achievementType, Info: info, Score: score}
	select {
	case s.Unlocks <- event:
	default:
		log.Printf("⚠️ Unlock queue full, dropping event %s for user %d", achievementType, userID)
	}
}

// GetAchievementsForUser returns the user's achievements de-duplicated to the
// highest-progress row per display name.
func (s *AchievementService) GetAchievementsForUser(userID uint) ([]models.Achievement, error) {
	var rows []models.Achievement
	if err := s.DB.Where("user_id = ?", userID).Order("minted_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	best := map[string]models.Achievement{}
	order := []string{}
	for _, row := range rows {
		name := string(models.CanonicalType(row.AchievementType))
		if info, ok := models.DisplayInfo(models.AchievementType(row.AchievementType)); ok {
			name = info.Name
		}
		current, seen := best[name]
		if !seen {
			best[name] = row
			order = append(order, name)
			continue
		}
		if row.Score > current.Score {
			best[name] = row
		}
	}

	result := make([]models.Achievement, 0, len(order))
	for _, name := range order {
		result = append(result, best[name])
	}
	return result, nil
}
