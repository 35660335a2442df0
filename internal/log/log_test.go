package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	SetLevel(LevelDebug)
	defer SetLevel(LevelInfo)

	Debug("debug line", "k", 1)
	Info("info line", "id", "abc", "dangling")
	Error("boom", errors.New("bad"), "op", "create")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "info line", entries[1].Message)
	assert.Equal(t, "abc", entries[1].ContextMap()["id"])
	assert.NotContains(t, entries[1].ContextMap(), "dangling")

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "create", entries[2].ContextMap()["op"])
	assert.Contains(t, entries[2].ContextMap(), "err")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
