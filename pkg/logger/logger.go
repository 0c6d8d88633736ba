package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"taskmaster/pkg/config"
)

// New builds the production logger. When cfg.File is set, output goes to a
// size-rotated file instead of stderr.
func New(cfg config.LogConfig) *zap.Logger {
	if cfg.File == "" {
		l, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return l
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		writer,
		zapcore.InfoLevel,
	)

	return zap.New(core, zap.AddCaller())
}
