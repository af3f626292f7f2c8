package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/screen-narrator/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestNewLoggerJSON(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogFormat = "json"
	cfg.LogLevel = "info"
	cfg.LogFile = ""

	var buf bytes.Buffer
	logger, closer, err := newLogger(cfg, &buf)
	require.NoError(t, err)
	assert.Nil(t, closer)

	logger.Debug("hidden")
	logger.Info("frame submitted", "frame_id", "abc")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"frame submitted"`)
}

func TestNewLoggerTeesToFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogFormat = "text"
	cfg.LogLevel = "debug"
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "debug.log")

	var buf bytes.Buffer
	logger, closer, err := newLogger(cfg, &buf)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.With("component", "speech").Warn("playback failed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "playback failed"))
	assert.Contains(t, string(data), "component=speech")
	assert.Contains(t, buf.String(), "playback failed")
}
