package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_FileLoggingWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "engine.log")

	logger, cleanup, err := Setup(Config{
		Level:         "debug",
		FilePath:      logPath,
		MaxSizeMB:     10,
		MaxFiles:      3,
		WriteToStderr: false,
	})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("indexed document", "workspace_id", "ws-1", "chunks", 12)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "indexed document")
	assert.Contains(t, string(data), "ws-1")
}

func TestSetup_NoFilePathUsesStderrOnly(t *testing.T) {
	logger, cleanup, err := Setup(StderrOnlyConfig("info"))
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, logger)
}

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")

	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	w.maxSize = 32

	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte("0123456789\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestRotatingWriter_CapsBackupCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")

	w, err := NewRotatingWriter(path, 0, 1)
	require.NoError(t, err)
	w.maxSize = 16

	for i := 0; i < 20; i++ {
		_, err := w.Write([]byte("xxxxxxxxxx\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultLogPath_UnderCortexragDir(t *testing.T) {
	assert.Contains(t, DefaultLogPath(), ".cortexrag")
}
