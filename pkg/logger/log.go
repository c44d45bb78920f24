// Package logger wraps zap behind a small structured-logging surface so
// callers don't couple to zap types directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field holds a key-value pair to be written to the log.
type Field struct {
	Key   string
	Value any
}

// NewField returns a Field with the given key and value.
func NewField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is a wrapper around zap.Logger to provide structured logging.
type Logger struct {
	logger *zap.Logger
}

// New builds a production logger at the given level ("debug", "info",
// "warn", "error"); anything else falls back to info.
func New(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.MessageKey = "message"

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger: z}, nil
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{logger: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetZap returns the underlying zap.Logger, for middleware that wants it.
func (l *Logger) GetZap() *zap.Logger {
	return l.logger
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// Info writes a log with severity level info.
func (l *Logger) Info(message string, fields ...Field) {
	l.logger.Info(message, convertFields(fields...)...)
}

// Warn writes a log with severity level warn.
func (l *Logger) Warn(message string, fields ...Field) {
	l.logger.Warn(message, convertFields(fields...)...)
}

// Debug writes a log with severity level debug.
func (l *Logger) Debug(message string, fields ...Field) {
	l.logger.Debug(message, convertFields(fields...)...)
}

// Error writes a log with severity level error.
func (l *Logger) Error(err error, fields ...Field) {
	l.logger.Error(err.Error(), convertFields(fields...)...)
}

// WithFields returns a child logger with additional fields.
func (l *Logger) WithFields(fields ...Field) *Logger {
	return &Logger{logger: l.logger.With(convertFields(fields...)...)}
}

func convertFields(fields ...Field) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
