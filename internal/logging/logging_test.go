package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "debug", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	LogTodoToggled(logger, "t1", true)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, EventTodoToggled, entry["event"])
	assert.Equal(t, "t1", entry["todo_id"])
	assert.Equal(t, true, entry["is_completed"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetupWriter_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "chatty", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetupWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "info", "console")

	LogTodoAdded(logger, "t2", 5)
	assert.True(t, strings.Contains(buf.String(), "Todo added"))
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestHelpers_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogTodosCleared(logger, 3, 2, 15*time.Millisecond)
	LogStoreError(logger, "rename", errors.New("disk full"))
	LogPublishFailed(logger, "added", errors.New("no responders"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var cleared, store, publish map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &cleared))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &store))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &publish))

	assert.Equal(t, float64(3), cleared["deleted_count"])
	assert.Equal(t, float64(2), cleared["removed"])
	assert.Equal(t, "rename", store["operation"])
	assert.Equal(t, "disk full", store["error"])
	assert.Equal(t, "warn", publish["level"])
}
