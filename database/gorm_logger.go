package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger sends GORM logs to slog. Queries log at debug, slow queries at
// warn and failures at error.
type gormLogger struct {
	logger        *slog.Logger
	logLevel      logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger wraps l as a gorm logger.
func NewGormLogger(l *slog.Logger) logger.Interface {
	return &gormLogger{
		logger:        l,
		logLevel:      logger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (gl *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *gl
	newLogger.logLevel = level
	return &newLogger
}

func (gl *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if gl.logLevel >= logger.Info {
		gl.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (gl *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if gl.logLevel >= logger.Warn {
		gl.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (gl *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if gl.logLevel >= logger.Error {
		gl.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (gl *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if gl.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{
		slog.Duration("duration", elapsed),
		slog.Int64("rows", rows),
		slog.String("sql", sql),
	}

	switch {
	case err != nil && gl.logLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		gl.logger.ErrorContext(ctx, "database query failed", append(attrs, slog.Any("error", err))...)
	case elapsed > gl.slowThreshold && gl.logLevel >= logger.Warn:
		gl.logger.WarnContext(ctx, "slow SQL query", attrs...)
	case gl.logLevel >= logger.Info:
		gl.logger.DebugContext(ctx, "SQL query executed", attrs...)
	}
}
