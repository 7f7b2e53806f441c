// Package database opens the SQL database backing loader.DBLoader. The
// driver (SQLite or PostgreSQL) is picked from the DSN.
package database

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Manager owns one lazily opened connection pool.
type Manager struct {
	driver  Driver
	cfg     *Config
	logger  *slog.Logger
	db      *gorm.DB
	openErr error
	dbOnce  sync.Once
	dbMutex sync.Mutex
}

// NewManager creates a manager for cfg. A nil cfg is DefaultConfig("").
func NewManager(cfg *Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		driver: DriverFor(cfg.DSN),
		cfg:    cfg,
		logger: logger,
	}
}

// Connect returns a GORM session, opening the pool on first use.
func (m *Manager) Connect() (*gorm.DB, error) {
	m.dbOnce.Do(func() {
		m.openErr = m.open()
	})
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.db.Session(&gorm.Session{}), nil
}

// Driver returns the driver selected from the DSN.
func (m *Manager) Driver() Driver {
	return m.driver
}

// Close closes the pool. A later Connect opens a new one.
func (m *Manager) Close() error {
	m.dbMutex.Lock()
	defer m.dbMutex.Unlock()

	if m.db == nil {
		return nil
	}

	if err := m.driver.Close(m.db, m.logger); err != nil {
		m.logger.Warn("driver cleanup error", slog.Any("error", err))
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("database: access sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("database: close: %w", err)
	}

	m.db = nil
	m.openErr = nil
	m.dbOnce = sync.Once{}
	m.logger.Info("database connection closed", slog.String("driver", m.driver.Name()))
	return nil
}

func (m *Manager) open() error {
	m.dbMutex.Lock()
	defer m.dbMutex.Unlock()

	if m.cfg.DSN == "" {
		return fmt.Errorf("database: open: empty DSN")
	}

	db, err := gorm.Open(m.driver.Open(m.cfg), &gorm.Config{
		Logger:                 NewGormLogger(m.logger.With(slog.String("component", "gorm"))),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("database: open: %w", err)
	}

	if err := m.driver.AfterConnect(db, m.cfg, m.logger); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(m.cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)

	m.logger.Info("database connection established",
		slog.String("driver", m.driver.Name()),
		slog.Int("max_open", m.cfg.MaxOpenConns),
		slog.Int("max_idle", m.cfg.MaxIdleConns),
	)

	m.db = db
	return nil
}
