package testsupport

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDBOptions configures test database creation.
type TestDBOptions struct {
	// Models to auto-migrate
	Models []any

	// Enable SQL logging (default: silent)
	Verbose bool
}

// SetupTestDB creates an in-memory SQLite database for testing.
// The pool is pinned to one connection: every new :memory: connection would
// otherwise see an empty database.
func SetupTestDB(t *testing.T, opts ...TestDBOptions) *gorm.DB {
	t.Helper()

	var options TestDBOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	logMode := logger.Silent
	if options.Verbose {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testsupport: failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("testsupport: failed to apply pragma: %v", err)
	}

	if len(options.Models) > 0 {
		if err := db.AutoMigrate(options.Models...); err != nil {
			t.Fatalf("testsupport: failed to migrate models: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
