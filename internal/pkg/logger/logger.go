// Package logger builds the zap logger used across the engine. File output
// rotates via lumberjack so long-running deployments do not fill the disk.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log destination and verbosity.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Path is the log file; empty means stderr only.
	Path string

	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep.
	MaxBackups int

	// MaxAgeDays is how long to keep rotated files.
	MaxAgeDays int
}

// New builds a production JSON logger. With a file path configured, output
// goes to both stderr and the rotating file.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil && cfg.Level != "" {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}

	if cfg.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 10),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
