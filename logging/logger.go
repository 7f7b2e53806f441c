// Package logging builds the slog.Logger used by liquidview commands:
// colored text in development, JSON to stdout plus a rotating file in
// production.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Environments understood by New.
const (
	Development = "development"
	Test        = "test"
	Production  = "production"
)

// Config configures the logger.
type Config struct {
	// Environment selects the handler. Anything other than Production
	// gets the development logger.
	Environment string

	// Level is the minimum log level. Defaults to "info" in development and
	// "error" in production. LOG_LEVEL overrides it.
	Level string

	// Directory for log files. Only used in production. Defaults to "logs".
	Directory string

	// MaxSizeMB is the max size in megabytes before rotation. Defaults to 100.
	MaxSizeMB int

	// MaxBackups is the max number of old log files to keep. Defaults to 3.
	MaxBackups int

	// MaxAgeDays is the max age in days before a log file is deleted.
	// Defaults to 28.
	MaxAgeDays int

	// AppName is used in the log filename. Defaults to "liquidview".
	AppName string

	// Output replaces stdout. Mostly for tests.
	Output io.Writer
}

// New creates a logger for cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	level := ResolveLevel(cfg)
	if cfg.Environment != Production {
		return slog.New(newColorHandler(out, &slog.HandlerOptions{Level: level}))
	}
	return newProdLogger(out, level, cfg)
}

// ResolveLevel picks the level from LOG_LEVEL, then cfg.Level, then the
// environment default.
func ResolveLevel(cfg Config) slog.Level {
	levelStr := cfg.Level
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		levelStr = envLevel
	}
	if levelStr == "" {
		if cfg.Environment == Production {
			levelStr = "error"
		} else {
			levelStr = "info"
		}
	}

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newProdLogger(out io.Writer, level slog.Level, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	appName := cfg.AppName
	if appName == "" {
		appName = "liquidview"
	}
	dir := cfg.Directory
	if dir == "" {
		dir = "logs"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		// stdout only
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, appName+".log"),
		MaxSize:    positiveOr(cfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.MaxBackups, 3),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 28),
		Compress:   true,
	}

	return slog.New(slog.NewJSONHandler(io.MultiWriter(out, rotator), opts))
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// colorHandler prints "15:04:05 LEVEL message key=value" with ANSI colors.
type colorHandler struct {
	w      io.Writer
	level  slog.Leveler
	prefix string // pre-rendered WithAttrs attributes
	group  string
}

func newColorHandler(w io.Writer, opts *slog.HandlerOptions) *colorHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &colorHandler{w: w, level: level}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelColor = colorRed
	case r.Level >= slog.LevelWarn:
		levelColor = colorYellow
	case r.Level >= slog.LevelInfo:
		levelColor = colorBlue
	default:
		levelColor = colorGray
	}

	var buf strings.Builder
	buf.WriteString(colorGray + r.Time.Format("15:04:05") + colorReset + " ")
	buf.WriteString(levelColor + r.Level.String() + colorReset + " ")
	buf.WriteString(r.Message)
	buf.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(h.formatAttr(a))
		return true
	})
	buf.WriteString("\n")

	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *colorHandler) formatAttr(a slog.Attr) string {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	return " " + colorGray + key + "=" + colorReset + a.Value.Resolve().String()
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		next.prefix += h.formatAttr(a)
	}
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if next.group != "" {
		next.group += "." + name
	} else {
		next.group = name
	}
	return &next
}
