// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"

	"poststream/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an isolated in-memory SQLite database with every model
// migrated. A single connection keeps all statements on the same memory DB.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// CreateProfile inserts an account and its profile with zero counters.
func CreateProfile(t testing.TB, db *gorm.DB, username string) *models.Profile {
	t.Helper()

	account := &models.Account{
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
	}
	require.NoError(t, db.Create(account).Error)

	profile := &models.Profile{
		UserID:    account.ID,
		Username:  username,
		FirstName: username,
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// Reload re-reads a profile's stored counters.
func Reload(t testing.TB, db *gorm.DB, p *models.Profile) *models.Profile {
	t.Helper()
	var fresh models.Profile
	require.NoError(t, db.First(&fresh, p.ID).Error)
	return &fresh
}

// ReloadPost re-reads a post's stored counters.
func ReloadPost(t testing.TB, db *gorm.DB, id uint) *models.Post {
	t.Helper()
	var fresh models.Post
	require.NoError(t, db.First(&fresh, id).Error)
	return &fresh
}
