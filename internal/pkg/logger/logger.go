package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a config string to a zap level. Unknown values fall back to info.
func ParseLevel(levelStr string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info", "":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	}
	return zapcore.InfoLevel, false
}

// New builds a JSON zap logger at the given level. When file is non-empty the
// output is written there in addition to stdout.
func New(levelStr, file string) (*zap.Logger, error) {
	level, ok := ParseLevel(levelStr)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	if !ok {
		log.Warn("Invalid log level string, defaulting to INFO", zap.String("input", levelStr))
	}
	return log, nil
}

// SetDefaultSlog routes the standard library slog default through log's core,
// so third-party code logging via slog ends up in the same sink.
func SetDefaultSlog(log *zap.Logger) {
	handler := zapslog.NewHandler(log.Core(), zapslog.WithName("slog"))
	slog.SetDefault(slog.New(handler))
}

// Fatal writes msg to stderr and exits. Used before any logger exists.
func Fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "CRITICAL: %s: %v\n", msg, err)
	os.Exit(1)
}
