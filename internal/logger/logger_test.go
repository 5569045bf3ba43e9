package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteTagsModule(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	WriteInfo("Ingest", "loaded table", zap.Int("rows", 3))
	WriteWarning("Benford", "few observations")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "loaded table", entries[0].Message)
	assert.Equal(t, "Ingest", entries[0].ContextMap()["module"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["rows"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestInitializeWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{Dir: dir, Level: "debug"}))
	WriteInfo("Test", "hello")
	path := GetLogPath()
	Close()

	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"module":"Test"`)
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "caat_2000-01-01.log")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	cleanupOldLogs(dir, 10)

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestUninitializedLoggerDiscards(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() { WriteError("X", "ignored") })
}
