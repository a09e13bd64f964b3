// Package logging builds the application logger. The terminal belongs to
// the UI, so records go to a rotating JSON file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/epikom-hub/internal/model"
)

// New returns a logger writing JSON records to cfg.Path, rotated by size.
// The returned close function flushes and closes the file.
func New(cfg model.LogConfig) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    max(cfg.MaxSizeMB, 1),
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(rotator),
		level,
	)
	logger := zap.New(core, zap.AddCaller())

	closeFn := func() error {
		_ = logger.Sync()
		return rotator.Close()
	}
	return logger, closeFn, nil
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
