package logging

import (
	"bytes"
	"encoding/json"
	log "log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelWarn, ParseLevel("WARN", "development"))
	assert.Equal(t, log.LevelDebug, ParseLevel("", "development"))
	assert.Equal(t, log.LevelInfo, ParseLevel("bogus", "production"))
}

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "production", log.LevelInfo)

	logger.Debug("hidden")
	logger.Info("Processing command", "command", "hello")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Processing command", entry["msg"])
	assert.Equal(t, "hello", entry["command"])
}

func TestNew_DevelopmentIsReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "development", log.LevelDebug)
	logger.Debug("Tools needed", "tools", "search_web")

	out := buf.String()
	assert.Contains(t, out, "Tools needed")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}
