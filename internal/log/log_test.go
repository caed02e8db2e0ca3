package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rand/goalsolver/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("Task resolved", "kind", "setColor")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Task resolved", rec["msg"])
	assert.Equal(t, "setColor", rec["kind"])
	assert.Equal(t, "goalsolver", rec["component"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("No solution found", "kind", "job")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "kind=job")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.LogConfig{Level: "info", Format: "pretty"}, &buf)
	require.NoError(t, err)

	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))

	logger.Info("Task resolved", "strategy", "paint")
	assert.Contains(t, buf.String(), "Task resolved")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goalsolver.log")
	logger, closer, err := New(config.LogConfig{
		Level:      "debug",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, nil)
	require.NoError(t, err)

	logger.Debug("Estimating task", "kind", "job")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Estimating task")
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown log format")
}
