package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

var CorrelatedIDKey contextKey = "correlation_id"

const LoggerKeyForContext contextKey = "logger"

type Logger struct {
	*slog.Logger
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values mean info.
func ParseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
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

func NewLogger(w io.Writer, level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

func NewLoggerWithJSONOutput() *Logger {
	return NewLogger(os.Stdout, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// NewDiscardLogger is for tests and tools that must stay quiet.
func NewDiscardLogger() *Logger {
	return NewLogger(io.Discard, slog.LevelError+4)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func (l *Logger) WithCorrelationID(ctx context.Context) *Logger {
	return l.With(string(CorrelatedIDKey), GetOrGenerateCorrelationID(ctx))
}

func GetOrGenerateCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if s, ok := ctx.Value(CorrelatedIDKey).(string); ok && s != "" {
			return s
		}
	}
	return GenerateCorrelationID()
}

func GenerateCorrelationID() string {
	return uuid.New().String()
}

func GetLoggerInstanceFromContext(ctx context.Context, fallbackLogger *Logger) *Logger {
	if ctx == nil {
		if fallbackLogger != nil {
			return fallbackLogger
		}
		return NewLoggerWithJSONOutput()
	}

	if l, ok := ctx.Value(LoggerKeyForContext).(*Logger); ok && l != nil {
		return l
	}

	if fallbackLogger != nil {
		return fallbackLogger.WithCorrelationID(ctx)
	}
	return NewLoggerWithJSONOutput().WithCorrelationID(ctx)
}
