// ABOUTME: zap logger construction for the command line tools
// ABOUTME: Logs JSON to a file and optionally human readable lines to stdout
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects where logs go
type Config struct {
	// Level is a zap level name: debug, info, warn, error
	Level string

	// File receives JSON logs; empty disables file logging
	File string

	// Console also writes to stdout. Disable it while a TUI owns the terminal.
	Console bool
}

// New builds a logger from cfg. The returned close func flushes the logger
// and closes the log file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	encoding := zap.NewProductionEncoderConfig()
	encoding.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	var file *os.File

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoding), zapcore.AddSync(f), level))
	}

	if cfg.Console {
		console := encoding
		console.EncodeLevel = zapcore.CapitalColorLevelEncoder
		console.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stdout), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}
