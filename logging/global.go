// Package logging configures log/slog for the converter: human readable text
// on the console and JSON lines in weekly rotating files.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/giygas/fsh-designations/config"
)

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var DefaultLoggingService *LoggingService

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// GetConsoleLogLevel picks the console level. Tests stay quiet unless
// verbose; prod and staging default to warn; LOG_LEVEL overrides otherwise.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if strings.TrimSpace(logLevel) != "" {
		return parseLogLevel(logLevel)
	}
	if env == config.EnvProduction || env == config.EnvStaging {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// GetFileLogLevel is the level for the rotating file, which keeps everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// NewLogger builds the console + rotating file logger described by cfg.
// When the log directory is unusable it logs the problem and falls back to
// the console only.
func NewLogger(cfg *config.Config, verbose bool) *LoggingService {
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(cfg.Env, cfg.LogLevel, verbose),
	})

	rotator, err := NewRotatingLogger(cfg.LogDir, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("File logging disabled", "error", err)
		return &LoggingService{Logger: logger}
	}
	rotator.StartCleanup(24 * time.Hour)

	file := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return &LoggingService{
		Logger:  slog.New(&multiHandler{handlers: []slog.Handler{console, file}}),
		rotator: rotator,
	}
}

// InitLogger initializes the global logger instance
func InitLogger(cfg *config.Config, verbose bool) {
	DefaultLoggingService = NewLogger(cfg, verbose)
	slog.SetDefault(DefaultLoggingService.Logger)
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	if DefaultLoggingService == nil || DefaultLoggingService.rotator == nil {
		return nil
	}
	return DefaultLoggingService.rotator.Close()
}

// DefaultLogger returns the installed logger, or slog's default before InitLogger
func DefaultLogger() *slog.Logger {
	return logger()
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.Default()
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}

// multiHandler fans records out to every handler that accepts their level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
