package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	// RunIDKey identifies one batch run across all its log lines.
	RunIDKey ctxKey = "run_id"

	// CommandKey is the subcommand being executed.
	CommandKey ctxKey = "command"
)

// WithContext creates a child logger carrying run_id and command from ctx.
func WithContext(logger Logger, ctx context.Context) Logger {
	if ctx == nil {
		return logger
	}

	var fields []zap.Field
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if cmd := stringValue(ctx, CommandKey); cmd != "" {
		fields = append(fields, zap.String("command", cmd))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// GetRunID extracts the run id from context.
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

// SetRunID adds the run id to context.
func SetRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// SetCommand adds the subcommand name to context.
func SetCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, CommandKey, command)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

type loggerKey struct{}

// FromContext returns the Logger stored in the context, or the global logger
// decorated with the context fields.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return Global()
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return WithContext(Global(), ctx)
}

// ToContext stores the Logger in the context.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
