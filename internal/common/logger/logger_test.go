package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_Constants(t *testing.T) {
	assert.Equal(t, 0, int(DEBUG))
	assert.Equal(t, 1, int(INFO))
	assert.Equal(t, 2, int(WARN))
	assert.Equal(t, 3, int(ERROR))

	assert.True(t, DEBUG < INFO)
	assert.True(t, INFO < WARN)
	assert.True(t, WARN < ERROR)
}

func newCapturing(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	old := zapCoreWriter
	zapCoreWriter = &buf
	l := New(level)
	zapCoreWriter = old
	return l, &buf
}

func TestNew(t *testing.T) {
	for _, level := range []LogLevel{DEBUG, INFO, WARN, ERROR} {
		l := New(level)
		require.NotNil(t, l)
		assert.Equal(t, level, l.level)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l := New(INFO)
	l.SetLevel(ERROR)
	assert.Equal(t, ERROR, l.level)
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newCapturing(WARN)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")
	_ = l.Sync()

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestLogger_MessageFormatting(t *testing.T) {
	l, buf := newCapturing(DEBUG)

	l.Error("error %d: %s", 404, "not found")
	_ = l.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "error 404: not found", entry["msg"])
}

func TestLogger_With(t *testing.T) {
	l, buf := newCapturing(INFO)

	child := l.With("index_id", "abc", "level", 2)
	child.Info("descending")
	_ = child.Sync()

	output := buf.String()
	assert.Contains(t, output, `"index_id":"abc"`)
	assert.Contains(t, output, `"level":2`)
}

func TestPackageLevelDefaults(t *testing.T) {
	SetLevel(DEBUG)
	assert.Equal(t, DEBUG, defaultLogger.level)
	SetLevel(INFO)
}
