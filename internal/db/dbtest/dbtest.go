// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workforce-status-backend/internal/db"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// New returns a fresh database private to the calling test. It is closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := unsafeChars.ReplaceAllString(t.Name(), "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// A single connection serializes access; code under test must use the tx handle inside transactions.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}
