// Package observability provides the dispatch engine's zap-based logging
// and OpenTelemetry/Prometheus metrics.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production JSON logger at the given level (spec
// §6's LOG_LEVEL), one atomic level for the whole process.
func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsedLevel)

	config.Encoding = "json"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// NewDevelopmentLogger builds a console-encoded, color-leveled logger for
// local runs.
func NewDevelopmentLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, _ := config.Build()
	return logger
}

// GetLogger builds the process logger for level, switching to the
// console-encoded development logger when GO_ENV=development. level
// comes from config.Config.LogLevel rather than a hardcoded default, so
// LOG_LEVEL actually takes effect outside development mode.
func GetLogger(level string) *zap.Logger {
	if os.Getenv("GO_ENV") == "development" {
		return NewDevelopmentLogger()
	}

	logger, err := NewLogger(level)
	if err != nil {
		return NewDevelopmentLogger()
	}

	return logger
}
