// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the schema migrated.
// The pool is pinned to one connection so every query sees the same database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.Tables()...))
	return db
}

// CreateUser inserts a user with the given username
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		Role:        models.RoleUser,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}
