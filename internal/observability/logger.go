package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	id "agentsvc/internal/utils/id"
)

// Logger wraps slog for structured logging
type Logger struct {
	logger *slog.Logger
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output io.Writer
}

// NewLogger creates a new structured logger
func NewLogger(config LogConfig) *Logger {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(config.Level)}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{logger: slog.New(handler)}
}

// ParseLevel maps a level name to slog, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithContext adds run and request identifiers carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var args []any
	if runID := id.RunIDFromContext(ctx); runID != "" {
		args = append(args, "run_id", runID)
	}
	if requestID := id.RequestIDFromContext(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...)}
}

// With adds additional fields to the logger
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs at info level
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs at error level
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// InfoContext logs at info level with context
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}

// ErrorContext logs at error level with context
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Error(msg, args...)
}

// SanitizeAPIKey masks API key for security
func SanitizeAPIKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 12 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
