package services

import (
	"fmt"
	"testing"
	"time"

	"trivia-achievement-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRuleFixture(t *testing.T) (*gorm.DB, *RuleService, *AchievementService) {
	t.Helper()
	db := newTestDB(t)
	recorder := NewAchievementService(db)
	rules := NewRuleService(db, recorder)
	return db, rules, recorder
}

func seedCorrectResponses(t *testing.T, db *gorm.DB, userID, sessionID uint, category string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		resp := models.PlayerResponse{
			UserID:         userID,
			SessionID:      sessionID,
			QuestionID:     fmt.Sprintf("%s-q%d", category, i),
			Category:       category,
			IsCorrect:      true,
			ResponseTimeMs: 5000,
		}
		require.NoError(t, db.Create(&resp).Error)
	}
}

func achievementTypes(t *testing.T, db *gorm.DB, userID uint) map[string]int {
	t.Helper()
	var rows []models.Achievement
	require.NoError(t, db.Where("user_id = ?", userID).Find(&rows).Error)
	got := map[string]int{}
	for _, row := range rows {
		got[row.AchievementType] = row.Score
	}
	return got
}

func TestStreakTiersAreIndependentFlags(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule1")

	unlocked, err := rules.EvaluateResponse(ResponseEvent{UserID: user.ID, SessionID: 1, Category: "science", IsCorrect: true, StreakCount: 5, ResponseTimeMs: 5000})
	require.NoError(t, err)

	// a streak of 5 fires both tiers on the same event
	assert.ElementsMatch(t, []models.AchievementType{models.TypeStreak3, models.TypeStreak5}, unlocked)

	got := achievementTypes(t, db, user.ID)
	assert.Contains(t, got, "streak_3")
	assert.Contains(t, got, "streak_5")
}

func TestStreakBelowTierFiresNothing(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule2")

	unlocked, err := rules.EvaluateResponse(ResponseEvent{UserID: user.ID, SessionID: 1, Category: "science", IsCorrect: true, StreakCount: 2, ResponseTimeMs: 5000})
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestSpeedDemonRequiresFastCorrectAnswer(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule3")

	// wrong answer, fast: no badge
	unlocked, err := rules.EvaluateResponse(ResponseEvent{UserID: user.ID, SessionID: 1, Category: "science", IsCorrect: false, ResponseTimeMs: 900})
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	// correct but slow: no badge
	unlocked, err = rules.EvaluateResponse(ResponseEvent{UserID: user.ID, SessionID: 1, Category: "science", IsCorrect: true, ResponseTimeMs: 2000})
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	// correct and under 2s
	unlocked, err = rules.EvaluateResponse(ResponseEvent{UserID: user.ID, SessionID: 1, Category: "science", IsCorrect: true, ResponseTimeMs: 1500})
	require.NoError(t, err)
	assert.Equal(t, []models.AchievementType{models.TypeSpeedDemon}, unlocked)
}

func TestPerfectRoundExactlyTenAllCorrect(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule4")
	session := newActiveSession(t, db, user.ID)

	seedCorrectResponses(t, db, user.ID, session.ID, "science", 10)

	unlocked, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, unlocked, models.TypePerfectRound)

	got := achievementTypes(t, db, user.ID)
	assert.Equal(t, 10, got["perfect_round"])
}

func TestPerfectRoundNineOfTenYieldsNothing(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule5")
	session := newActiveSession(t, db, user.ID)

	seedCorrectResponses(t, db, user.ID, session.ID, "science", 9)
	miss := models.PlayerResponse{UserID: user.ID, SessionID: session.ID, QuestionID: "q-miss", Category: "science", IsCorrect: false, ResponseTimeMs: 5000}
	require.NoError(t, db.Create(&miss).Error)

	unlocked, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.NotContains(t, unlocked, models.TypePerfectRound)
}

func TestPerfectRoundShortSessionYieldsNothing(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule6")
	session := newActiveSession(t, db, user.ID)

	seedCorrectResponses(t, db, user.ID, session.ID, "science", 9)

	unlocked, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.NotContains(t, unlocked, models.TypePerfectRound)
}

func TestCategoryMasteryAtFiftyThenRaisedToSixty(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule7")
	session := newActiveSession(t, db, user.ID)

	seedCorrectResponses(t, db, user.ID, session.ID, "science", 50)
	_, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)

	got := achievementTypes(t, db, user.ID)
	assert.Equal(t, 50, got["science_master"])

	// ten more correct answers raise the score without a second row
	session2 := newActiveSession(t, db, user.ID)
	seedCorrectResponses(t, db, user.ID, session2.ID, "science", 10)
	_, err = rules.EvaluateSession(user.ID, session2.ID, 0)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).
		Where("user_id = ? AND achievement_type = ?", user.ID, "science_master").
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
	got = achievementTypes(t, db, user.ID)
	assert.Equal(t, 60, got["science_master"])
}

func TestCategoryMasteryBelowThresholdYieldsNothing(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule8")
	session := newActiveSession(t, db, user.ID)

	seedCorrectResponses(t, db, user.ID, session.ID, "science", 49)
	_, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)

	got := achievementTypes(t, db, user.ID)
	assert.NotContains(t, got, "science_master")
}

func TestCategoryCollectorNeedsElevenCategories(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule9")
	session := newActiveSession(t, db, user.ID)

	categories := []string{"science", "history", "geography", "sports", "movies", "music", "popculture", "technology", "literature", "food"}
	for _, category := range categories {
		seedCorrectResponses(t, db, user.ID, session.ID, category, 1)
	}
	unlocked, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.NotContains(t, unlocked, models.TypeCategoryCollector)

	seedCorrectResponses(t, db, user.ID, session.ID, "animals", 1)
	unlocked, err = rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, unlocked, models.TypeCategoryCollector)

	got := achievementTypes(t, db, user.ID)
	assert.Equal(t, 11, got["category_collector"])
}

func TestDailyStreakSevenConsecutiveDays(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule10")
	session := newActiveSession(t, db, user.ID)

	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	rules.now = func() time.Time { return now }

	for day := 0; day < 7; day++ {
		resp := models.PlayerResponse{
			UserID:         user.ID,
			SessionID:      session.ID,
			QuestionID:     fmt.Sprintf("d%d", day),
			Category:       "science",
			IsCorrect:      true,
			ResponseTimeMs: 5000,
			CreatedAt:      now.AddDate(0, 0, -day),
		}
		require.NoError(t, db.Create(&resp).Error)
	}

	unlocked, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, unlocked, models.TypeDailyStreak7)
}

func TestDailyStreakGapResetsChain(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule11")
	session := newActiveSession(t, db, user.ID)

	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	rules.now = func() time.Time { return now }

	// six of the last seven days, missing day -3: the chain breaks
	for _, day := range []int{0, 1, 2, 4, 5, 6} {
		resp := models.PlayerResponse{
			UserID:         user.ID,
			SessionID:      session.ID,
			QuestionID:     fmt.Sprintf("g%d", day),
			Category:       "science",
			IsCorrect:      true,
			ResponseTimeMs: 5000,
			CreatedAt:      now.AddDate(0, 0, -day),
		}
		require.NoError(t, db.Create(&resp).Error)
	}

	unlocked, err := rules.EvaluateSession(user.ID, session.ID, 0)
	require.NoError(t, err)
	assert.NotContains(t, unlocked, models.TypeDailyStreak7)
}

func TestWalletVerifiedOneOffFlag(t *testing.T) {
	db, rules, _ := newRuleFixture(t)
	user := newTestUser(t, db, "0xrule12")

	outcome, err := rules.RecordWalletVerified(user.ID)
	require.NoError(t, err)
	assert.Equal(t, RecordCreated, outcome)

	outcome, err = rules.RecordWalletVerified(user.ID)
	require.NoError(t, err)
	assert.Equal(t, RecordUnchanged, outcome)
}
