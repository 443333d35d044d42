package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"turnstileguard/internal/gate"
)

// Logger adapts slog.Logger to gate.Logger
type Logger struct {
	slogger *slog.Logger
}

// NewLogger creates a logger writing to stdout
func NewLogger(config gate.LoggingConfig) (gate.Logger, error) {
	return NewLoggerWithWriter(config, os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(config gate.LoggingConfig, w io.Writer) (gate.Logger, error) {
	level, err := parseLogLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json", "":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", config.Format)
	}

	return &Logger{slogger: slog.New(handler)}, nil
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
}

// With returns a new logger with additional fields
func (l *Logger) With(keysAndValues ...any) gate.Logger {
	return &Logger{
		slogger: l.slogger.With(attrsToAny(parseKeyValues(keysAndValues))...),
	}
}

func (l *Logger) log(level slog.Level, msg string, keysAndValues []any) {
	ctx := context.Background()
	if !l.slogger.Enabled(ctx, level) {
		return
	}
	l.slogger.LogAttrs(ctx, level, msg, parseKeyValues(keysAndValues)...)
}

// parseKeyValues converts key-value pairs to slog attributes. A trailing key
// without a value and non-string keys are dropped.
func parseKeyValues(keysAndValues []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		value := keysAndValues[i+1]
		if err, ok := value.(error); ok && err != nil {
			value = err.Error()
		}
		attrs = append(attrs, slog.Any(key, value))
	}

	return attrs
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

// parseLogLevel parses a log level string to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch gate.ParseLogLevel(strings.ToLower(level)) {
	case gate.LogLevelDebug:
		return slog.LevelDebug, nil
	case gate.LogLevelWarn:
		return slog.LevelWarn, nil
	case gate.LogLevelError:
		return slog.LevelError, nil
	}

	switch strings.ToLower(level) {
	case "info", "":
		return slog.LevelInfo, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}
