package log

import "context"

// ContextWithCorrelationID stores id for WithCorrelationID to pick up.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = GenerateCorrelationID()
	}
	return context.WithValue(ctx, CorrelatedIDKey, id)
}

// ContextWithLogger attaches l so GetLoggerInstanceFromContext returns it.
func ContextWithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, LoggerKeyForContext, l)
}

// NewBackgroundContext starts a context for work outside an HTTP request,
// such as CLI commands, carrying a fresh correlation id and the logger.
func NewBackgroundContext(l *Logger) (context.Context, *Logger) {
	ctx := ContextWithCorrelationID(context.Background(), "")
	correlated := l.WithCorrelationID(ctx)
	return ContextWithLogger(ctx, correlated), correlated
}
