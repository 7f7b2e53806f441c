package database

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Driver holds the database-specific parts of opening a connection.
type Driver interface {
	// Name returns the driver name ("sqlite" or "postgres").
	Name() string

	// Open returns a GORM dialector for the configured DSN.
	Open(cfg *Config) gorm.Dialector

	// AfterConnect runs driver-specific setup once the pool exists.
	AfterConnect(db *gorm.DB, cfg *Config, logger *slog.Logger) error

	// Close runs driver-specific cleanup before the pool closes.
	Close(db *gorm.DB, logger *slog.Logger) error
}

// DriverFor picks the driver for dsn.
func DriverFor(dsn string) Driver {
	if IsPostgres(dsn) {
		return postgresDriver{}
	}
	return sqliteDriver{}
}

type sqliteDriver struct{}

func (sqliteDriver) Name() string { return "sqlite" }

func (sqliteDriver) Open(cfg *Config) gorm.Dialector {
	dsn := cfg.DSN
	if cfg.SQLite.TxImmediate && dsn != ":memory:" {
		dsn = appendParams(dsn, "_txlock=immediate")
	}
	return sqlite.Open(dsn)
}

func (sqliteDriver) AfterConnect(db *gorm.DB, cfg *Config, logger *slog.Logger) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.SQLite.BusyTimeout),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	if cfg.SQLite.EnableWAL && cfg.DSN != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			logger.Error("failed to apply pragma", slog.String("pragma", pragma), slog.Any("error", err))
			return fmt.Errorf("sqlite: apply pragma %s: %w", pragma, err)
		}
	}
	return nil
}

// Close checkpoints the WAL so the template store is a single file again.
func (sqliteDriver) Close(db *gorm.DB, logger *slog.Logger) error {
	logger.Debug("performing WAL checkpoint before close")
	return db.Exec("PRAGMA wal_checkpoint(PASSIVE);").Error
}

type postgresDriver struct{}

func (postgresDriver) Name() string { return "postgres" }

func (postgresDriver) Open(cfg *Config) gorm.Dialector {
	var params []string
	if cfg.Postgres.SSLMode != "" {
		params = append(params, "sslmode="+cfg.Postgres.SSLMode)
	}
	if cfg.Postgres.Timezone != "" {
		params = append(params, "TimeZone="+cfg.Postgres.Timezone)
	}

	dsn := cfg.DSN
	if strings.Contains(dsn, "://") {
		dsn = appendParams(dsn, params...)
	} else if len(params) > 0 {
		// key=value form
		dsn = strings.TrimSpace(dsn + " " + strings.Join(params, " "))
	}
	return postgres.Open(dsn)
}

func (postgresDriver) AfterConnect(db *gorm.DB, cfg *Config, logger *slog.Logger) error {
	if cfg.Postgres.SearchPath == "" {
		return nil
	}
	if err := db.Exec("SET search_path TO " + cfg.Postgres.SearchPath).Error; err != nil {
		logger.Error("failed to set search_path", slog.String("search_path", cfg.Postgres.SearchPath), slog.Any("error", err))
		return fmt.Errorf("postgres: set search_path: %w", err)
	}
	return nil
}

func (postgresDriver) Close(*gorm.DB, *slog.Logger) error { return nil }

// appendParams adds query parameters with the right separator.
func appendParams(dsn string, params ...string) string {
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
