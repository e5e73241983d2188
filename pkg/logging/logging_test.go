package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := ConfigFromEnv()
	require.Equal(t, "info", cfg.Level)
	require.Equal(t, "console", cfg.Format)

	zc := cfg.ZapConfig()
	require.Equal(t, "console", zc.Encoding)
	require.Equal(t, zap.InfoLevel, zc.Level.Level())
	require.Empty(t, zc.EncoderConfig.TimeKey)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	zc := ConfigFromEnv().ZapConfig()
	require.Equal(t, "json", zc.Encoding)
	require.Equal(t, zap.DebugLevel, zc.Level.Level())
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	zc := Config{Level: "verbose", Format: "console"}.ZapConfig()
	require.Equal(t, zap.InfoLevel, zc.Level.Level())
}

func TestPackageFunctionsUseGlobalLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Debug("d")
	Info("i", zap.String("format", "json"))
	Warn("w")
	Error("e")

	require.Equal(t, 4, logs.Len())
	entry := logs.FilterMessage("i").All()[0]
	require.Equal(t, "json", entry.ContextMap()["format"])
}
