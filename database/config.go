package database

import (
	"strings"
	"time"
)

// Config provides database configuration for the template store.
type Config struct {
	// DSN is the database connection string.
	// For SQLite: file path (e.g., "storage/templates.db") or ":memory:"
	// For PostgreSQL: postgres:// URL or "host=... dbname=..." DSN
	DSN string

	// MaxOpenConns is the maximum number of open connections. Default: 1 for SQLite, 10 for PostgreSQL.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections. Default: 1 for SQLite, 2 for PostgreSQL.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime. Default: 10 minutes.
	ConnMaxLifetime time.Duration

	// SQLite-specific options (ignored for other drivers)
	SQLite SQLiteOptions

	// PostgreSQL-specific options (ignored for other drivers)
	Postgres PostgresOptions
}

// SQLiteOptions contains SQLite-specific configuration.
type SQLiteOptions struct {
	// BusyTimeout in milliseconds. Default: 5000.
	BusyTimeout int

	// EnableWAL enables Write-Ahead Logging. Default: true.
	EnableWAL bool

	// TxImmediate uses immediate transaction locking. Default: true.
	TxImmediate bool
}

// PostgresOptions contains PostgreSQL-specific configuration.
type PostgresOptions struct {
	// SSLMode for connection security. Default: "prefer".
	SSLMode string

	// Timezone for the connection. Default: "UTC".
	Timezone string

	// SearchPath sets the schema search path.
	SearchPath string
}

// DefaultConfig returns a configuration for dsn with pool sizes suited to
// the driver the DSN selects.
func DefaultConfig(dsn string) *Config {
	cfg := &Config{
		DSN:             dsn,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 10 * time.Minute,
		SQLite: SQLiteOptions{
			BusyTimeout: 5000,
			EnableWAL:   true,
			TxImmediate: true,
		},
		Postgres: PostgresOptions{
			SSLMode:  "prefer",
			Timezone: "UTC",
		},
	}
	if IsPostgres(dsn) {
		cfg.MaxOpenConns = 10
		cfg.MaxIdleConns = 2
	}
	return cfg
}

// IsPostgres reports whether dsn points at PostgreSQL rather than a SQLite
// file.
func IsPostgres(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
