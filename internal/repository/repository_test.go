package repository

import (
	"testing"

	"chirp/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var quietGorm = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

// setupTestDB returns an in-memory SQLite store with every persistent table created.
// One connection keeps the :memory: database alive for the whole test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), quietGorm)
	require.NoError(t, err)

	raw, err := db.DB()
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = raw.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// setupMockDB speaks the Postgres dialect over sqlmock for error-path tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: raw}), quietGorm)
	require.NoError(t, err)
	return db, mock
}
