package services

import (
	"fmt"
	"strings"
	"testing"

	"trivia-achievement-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database and migrates the full
// schema. Each test gets its own database, named after the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.GameSession{},
		&models.PlayerResponse{},
		&models.Achievement{},
		&models.StreakHistoryEntry{},
		&models.WeeklyScore{},
		&models.RateLimitAudit{},
	))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, wallet string) *models.User {
	t.Helper()
	user := models.User{WalletAddress: strings.ToLower(wallet)}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func newActiveSession(t *testing.T, db *gorm.DB, userID uint) *models.GameSession {
	t.Helper()
	session := models.GameSession{UserID: userID, Status: models.SessionActive}
	require.NoError(t, db.Create(&session).Error)
	return &session
}
