package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.SugaredLogger
)

// LogConfig controls how the global logger is built.
type LogConfig struct {
	Level        string // level for the file sink (and console when ConsoleLevel is empty)
	ConsoleLevel string // level for stderr output
	File         string // optional JSON log file, rotated by size
	MaxSizeMB    int    // rotate File after this many megabytes (default 100)
	MaxBackups   int    // rotated files to keep (0 keeps all)
	MaxAgeDays   int    // days to keep rotated files (0 keeps all)
	Development  bool   // human-readable console encoding
}

// InitLogger initializes a global sugared logger from cfg.
func InitLogger(cfg LogConfig) error {
	fileLevel := parseLevel(cfg.Level)
	consoleLevel := fileLevel
	if cfg.ConsoleLevel != "" {
		consoleLevel = parseLevel(cfg.ConsoleLevel)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(consoleLevel)
	zcfg.OutputPaths = []string{"stderr"}

	z, err := zcfg.Build()
	if err != nil {
		return err
	}

	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotating),
			zap.NewAtomicLevelAt(fileLevel),
		)
		z = z.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger = z.Sugar()
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// L returns the global sugared logger.
// If InitLogger has not been called, it initializes at info level.
func L() *zap.SugaredLogger {
	if logger == nil {
		_ = InitLogger(LogConfig{Level: "info"})
	}
	return logger
}
