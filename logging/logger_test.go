package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*WorldLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	return NewLogger(cfg), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestWorldLogger_ContextAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)

	l.WithComponent("engine").WithChat("w1", "c1").Info("hello", "agent", "alice")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "hello", recs[0]["msg"])
	assert.Equal(t, "engine", recs[0]["component"])
	assert.Equal(t, "w1", recs[0]["world_id"])
	assert.Equal(t, "c1", recs[0]["chat_id"])
	assert.Equal(t, "alice", recs[0]["agent"])
}

func TestWorldLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "warn", recs[0]["msg"])
	assert.Equal(t, "error", recs[1]["msg"])
}

func TestWorldLogger_WithDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	_ = l.WithContext("k", "v")
	l.Info("plain")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	_, ok := recs[0]["k"]
	assert.False(t, ok)
}

func TestWorldLogger_LogLLMCall(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	l.LogLLMCall("alice", "gpt-4o", 10*time.Millisecond, true, nil)
	l.LogLLMCall("bob", "claude", time.Millisecond, false, errors.New("boom"))

	recs := decodeLines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "LLM call completed", recs[0]["msg"])
	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "LLM call failed", recs[1]["msg"])
	assert.Equal(t, "ERROR", recs[1]["level"])
	assert.Equal(t, "boom", recs[1]["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}
