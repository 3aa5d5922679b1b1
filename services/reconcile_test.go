package services

import (
	"testing"

	"trivia-achievement-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRepairFixture(t *testing.T) (*gorm.DB, *RepairService) {
	t.Helper()
	db := newTestDB(t)
	recorder := NewAchievementService(db)
	return db, NewRepairService(db, recorder)
}

func TestRepairDryRunIsReadOnly(t *testing.T) {
	db, repair := newRepairFixture(t)
	user := newTestUser(t, db, "0xfix1")
	session := newActiveSession(t, db, user.ID)
	seedCorrectResponses(t, db, user.ID, session.ID, "science", 50)

	report, err := repair.Repair(user.ID, false)
	require.NoError(t, err)
	require.Len(t, report.CategoryAchievements, 1)
	assert.Equal(t, "create", report.CategoryAchievements[0].Action)
	assert.Equal(t, "science_master", report.CategoryAchievements[0].AchievementType)
	assert.Equal(t, 50, report.CategoryAchievements[0].Score)

	// nothing was written
	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	// repeated dry runs return the same diff
	again, err := repair.Repair(user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, report.CategoryAchievements, again.CategoryAchievements)
}

func TestRepairApplyThenEmptyDiff(t *testing.T) {
	db, repair := newRepairFixture(t)
	user := newTestUser(t, db, "0xfix2")
	session := newActiveSession(t, db, user.ID)
	seedCorrectResponses(t, db, user.ID, session.ID, "science", 55)

	report, err := repair.Repair(user.ID, true)
	require.NoError(t, err)
	assert.False(t, report.Empty())

	var row models.Achievement
	require.NoError(t, db.Where("user_id = ? AND achievement_type = ?", user.ID, "science_master").First(&row).Error)
	assert.Equal(t, 55, row.Score)

	// post-condition: an immediate second apply finds nothing
	second, err := repair.Repair(user.ID, true)
	require.NoError(t, err)
	assert.True(t, second.Empty())
}

func TestRepairRaisesStaleCategoryScore(t *testing.T) {
	db, repair := newRepairFixture(t)
	user := newTestUser(t, db, "0xfix3")
	session := newActiveSession(t, db, user.ID)
	seedCorrectResponses(t, db, user.ID, session.ID, "history", 60)

	require.NoError(t, db.Create(&models.Achievement{ID: "stale", UserID: user.ID, AchievementType: "history_master", Score: 50}).Error)

	report, err := repair.Repair(user.ID, true)
	require.NoError(t, err)
	require.Len(t, report.CategoryAchievements, 1)
	assert.Equal(t, "update", report.CategoryAchievements[0].Action)
	assert.Equal(t, 50, report.CategoryAchievements[0].PreviousScore)
	assert.Equal(t, 60, report.CategoryAchievements[0].Score)

	var row models.Achievement
	require.NoError(t, db.Where("id = ?", "stale").First(&row).Error)
	assert.Equal(t, 60, row.Score)
}

func TestRepairMergesCaseVariantDuplicates(t *testing.T) {
	db, repair := newRepairFixture(t)
	user := newTestUser(t, db, "0xfix4")

	require.NoError(t, db.Create(&models.Achievement{ID: "d1", UserID: user.ID, AchievementType: "STREAK_5", Score: 6}).Error)
	require.NoError(t, db.Create(&models.Achievement{ID: "d2", UserID: user.ID, AchievementType: "streak_5", Score: 5}).Error)
	require.NoError(t, db.Create(&models.Achievement{ID: "d3", UserID: user.ID, AchievementType: "Streak_5", Score: 4}).Error)

	report, err := repair.Repair(user.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatesMerged)
	assert.Equal(t, 2, report.DuplicatesDeleted)

	var rows []models.Achievement
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "streak_5", rows[0].AchievementType) // normalized spelling
	assert.Equal(t, 6, rows[0].Score)                    // highest score kept

	second, err := repair.Repair(user.ID, true)
	require.NoError(t, err)
	assert.True(t, second.Empty())
}

func TestRepairPrefersRegistrySpellingOnScoreTie(t *testing.T) {
	db, repair := newRepairFixture(t)
	user := newTestUser(t, db, "0xfix5")

	require.NoError(t, db.Create(&models.Achievement{ID: "t1", UserID: user.ID, AchievementType: "SPEED_DEMON", Score: 5}).Error)
	require.NoError(t, db.Create(&models.Achievement{ID: "t2", UserID: user.ID, AchievementType: "speed_demon", Score: 5}).Error)

	_, err := repair.Repair(user.ID, true)
	require.NoError(t, err)

	var rows []models.Achievement
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "t2", rows[0].ID) // the registry-verbatim row survived
	assert.Equal(t, "speed_demon", rows[0].AchievementType)
}

func TestRepairReportsDuplicatesWithoutApplying(t *testing.T) {
	db, repair := newRepairFixture(t)
	user := newTestUser(t, db, "0xfix6")

	require.NoError(t, db.Create(&models.Achievement{ID: "k1", UserID: user.ID, AchievementType: "PERFECT_ROUND", Score: 10}).Error)
	require.NoError(t, db.Create(&models.Achievement{ID: "k2", UserID: user.ID, AchievementType: "perfect_round", Score: 10}).Error)

	report, err := repair.Repair(user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatesMerged)
	assert.Equal(t, 1, report.DuplicatesDeleted)

	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
