package services

import (
	"log"
	"sort"
	"time"

	"trivia-achievement-system/models"

	"gorm.io/gorm"
)

// CategoryProposal is one pending create/update of a mastery achievement
// derived from response history.
type CategoryProposal struct {
	Category        string `json:"category"`
	AchievementType string `json:"achievement_type"`
	Action          string `json:"action"` // create | update
	Score           int    `json:"score"`
	PreviousScore   int    `json:"previous_score,omitempty"`
}

// RepairReport is the diff a repair pass found (and applied, when asked to).
// Integrity problems surface here as data, never as an error.
type RepairReport struct {
	CategoryAchievements []CategoryProposal   `json:"category_achievements_proposed"`
	DuplicatesMerged     int                  `json:"duplicates_merged"`
	DuplicatesDeleted    int                  `json:"duplicates_deleted"`
	Achievements         []models.Achievement `json:"final_achievement_list"`
}

// Empty reports whether the pass found nothing to change.
func (r *RepairReport) Empty() bool {
	return len(r.CategoryAchievements) == 0 && r.DuplicatesMerged == 0 && r.DuplicatesDeleted == 0
}

// RepairService recomputes category achievements from history and collapses
// canonical-type duplicate groups. Never part of the hot write path.
type RepairService struct {
	DB       *gorm.DB
	Recorder *AchievementService
}

func NewRepairService(db *gorm.DB, recorder *AchievementService) *RepairService {
	return &RepairService{DB: db, Recorder: recorder}
}

// Repair runs the pass for one user. With apply=false it is read-only and
// returns the diff it would apply, so repeated dry runs are safe anywhere.
// With apply=true all proposed writes happen, and an immediate second apply
// returns an empty diff.
func (s *RepairService) Repair(userID uint, apply bool) (*RepairReport, error) {
	report := &RepairReport{CategoryAchievements: []CategoryProposal{}}

	if err := s.repairCategoryScores(userID, apply, report); err != nil {
		return nil, err
	}
	if err := s.collapseDuplicates(userID, apply, report); err != nil {
		return nil, err
	}

	final, err := s.Recorder.GetAchievementsForUser(userID)
	if err != nil {
		return nil, err
	}
	report.Achievements = final
	return report, nil
}

func (s *RepairService) repairCategoryScores(userID uint, apply bool, report *RepairReport) error {
	var counts []struct {
		Category string
		Total    int64
	}
	if err := s.DB.Model(&models.PlayerResponse{}).
		Select("category, COUNT(*) AS total").
		Where("user_id = ? AND is_correct = ?", userID, true).
		Group("category").
		Scan(&counts).Error; err != nil {
		return err
	}

	sort.Slice(counts, func(i, j int) bool { return counts[i].Category < counts[j].Category })

	for _, c := range counts {
		if c.Total < masteryThreshold {
			continue
		}
		masteryType := models.MasteryType(c.Category)

		var existing models.Achievement
		err := s.DB.Where("user_id = ? AND LOWER(achievement_type) = ?", userID, string(masteryType)).
			Order("score DESC").
			First(&existing).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			report.CategoryAchievements = append(report.CategoryAchievements, CategoryProposal{
				Category:        c.Category,
				AchievementType: string(masteryType),
				Action:          "create",
				Score:           int(c.Total),
			})
		case err != nil:
			return err
		case existing.Score < int(c.Total):
			report.CategoryAchievements = append(report.CategoryAchievements, CategoryProposal{
				Category:        c.Category,
				AchievementType: string(masteryType),
				Action:          "update",
				Score:           int(c.Total),
				PreviousScore:   existing.Score,
			})
		default:
			continue
		}

		if apply {
			if _, err := s.Recorder.Record(userID, string(masteryType), int(c.Total), RecordExtras{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *RepairService) collapseDuplicates(userID uint, apply bool, report *RepairReport) error {
	var rows []models.Achievement
	if err := s.DB.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return err
	}

	groups := map[models.AchievementType][]models.Achievement{}
	for _, row := range rows {
		key := models.CanonicalType(row.AchievementType)
		groups[key] = append(groups[key], row)
	}

	for canonical, group := range groups {
		needsRename := len(group) == 1 && group[0].AchievementType != string(canonical)
		if len(group) < 2 && !needsRename {
			continue
		}

		// Highest score wins; registry-verbatim spelling breaks ties.
		sort.Slice(group, func(i, j int) bool {
			if group[i].Score != group[j].Score {
				return group[i].Score > group[j].Score
			}
			iReg := models.IsRegistered(group[i].AchievementType)
			jReg := models.IsRegistered(group[j].AchievementType)
			if iReg != jReg {
				return iReg
			}
			return group[i].MintedAt.Before(group[j].MintedAt)
		})
		keeper := group[0]
		losers := group[1:]

		if len(losers) > 0 {
			report.DuplicatesMerged++
			report.DuplicatesDeleted += len(losers)
		}

		if !apply {
			continue
		}
		for _, loser := range losers {
			if err := s.DB.Delete(&models.Achievement{}, "id = ?", loser.ID).Error; err != nil {
				return err
			}
		}
		if keeper.AchievementType != string(canonical) {
			if err := s.DB.Model(&models.Achievement{}).
				Where("id = ?", keeper.ID).
				Update("achievement_type", string(canonical)).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// RepairRecentlyActive sweeps every user who played inside the window,
// applying fixes. Invoked by the scheduler, never inline on the hot path.
func (s *RepairService) RepairRecentlyActive(window time.Duration) {
	cutoff := time.Now().Add(-window)
	var users []models.User
	if err := s.DB.Where("last_played_at >= ?", cutoff).Find(&users).Error; err != nil {
		log.Printf("[Repair] sweep query failed: %v", err)
		return
	}
	for _, user := range users {
		report, err := s.Repair(user.ID, true)
		if err != nil {
			log.Printf("[Repair] user %d failed: %v", user.ID, err)
			continue
		}
		if !report.Empty() {
			log.Printf("✅ [Repair] user %d: %d category fixes, %d duplicate groups, %d rows deleted",
				user.ID, len(report.CategoryAchievements), report.DuplicatesMerged, report.DuplicatesDeleted)
		}
	}
}
