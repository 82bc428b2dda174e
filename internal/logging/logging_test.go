package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Output: &buf})
	defer Init(Options{Output: &bytes.Buffer{}})

	WithComponent("store").Debug("slot created", "key", "image_1")

	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	assert.Equal(t, "slot created", m["msg"])
	assert.Equal(t, "store", m["component"])
	assert.Equal(t, "image_1", m["key"])
	assert.Equal(t, "slidewizard", m["app"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Output: &buf})
	defer Init(Options{Output: &bytes.Buffer{}})

	L().Info("hidden")
	L().Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	var console bytes.Buffer
	Init(Options{Level: "info", File: path, Output: &console})
	L().Info("to both", "n", 1)
	require.NoError(t, Close())
	defer Init(Options{Output: &bytes.Buffer{}})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"to both"`))
	assert.Contains(t, console.String(), "to both")
}
