package logger

import "context"

// LoggerContext carries a Logger together with a mutable set of attributes
// that accumulate over the course of a single operation. It lets long
// functions add context (ids discovered mid-flight, handler types, counts) to
// every subsequent log line without rebuilding the logger each time.
//
// A LoggerContext is not safe for concurrent use; it is meant to live for the
// duration of one call.
type LoggerContext struct {
	logger *Logger
	args   []any
}

// NewLoggerContext constructs a LoggerContext around the provided Logger.
func NewLoggerContext(logger *Logger) *LoggerContext {
	return &LoggerContext{logger: logger}
}

// Add appends key/value pairs included in every subsequent log call.
func (lc *LoggerContext) Add(args ...any) {
	lc.args = append(lc.args, args...)
}

// Debug logs at LevelDebug with the accumulated attributes.
func (lc *LoggerContext) Debug(ctx context.Context, msg string, args ...any) {
	lc.logger.Debugc(ctx, 4, msg, append(lc.args, args...)...)
}

// Info logs at LevelInfo with the accumulated attributes.
func (lc *LoggerContext) Info(ctx context.Context, msg string, args ...any) {
	lc.logger.Infoc(ctx, 4, msg, append(lc.args, args...)...)
}

// Warn logs at LevelWarn with the accumulated attributes.
func (lc *LoggerContext) Warn(ctx context.Context, msg string, args ...any) {
	lc.logger.Warnc(ctx, 4, msg, append(lc.args, args...)...)
}

// Error logs at LevelError with the accumulated attributes.
func (lc *LoggerContext) Error(ctx context.Context, msg string, args ...any) {
	lc.logger.Errorc(ctx, 4, msg, append(lc.args, args...)...)
}
