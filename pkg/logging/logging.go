// Package logging holds the process-wide zap logger used by codecbench.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and encoding of the process logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

var logger = zap.NewNop()

// ConfigFromEnv reads LOG_LEVEL and LOG_FORMAT, defaulting to info and console.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "console"
	}
	return cfg
}

// ZapConfig translates cfg into a zap.Config. Unknown levels fall back to info.
func (cfg Config) ZapConfig() zap.Config {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	if cfg.Format == "json" {
		config.Encoding = "json"
	} else {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig.TimeKey = ""
		config.EncoderConfig.CallerKey = ""
	}
	return config
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Init builds the global logger from cfg.
func Init(cfg Config) error {
	l, err := cfg.ZapConfig().Build()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// SetLogger replaces the global logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// L returns the global logger.
func L() *zap.Logger {
	return logger
}

func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// Sync flushes buffered log entries.
func Sync() error {
	return logger.Sync()
}
