package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantLevel zerolog.Level
	}{
		{"quiet console still logs info to file", 0, zerolog.InfoLevel},
		{"info level", 1, zerolog.InfoLevel},
		{"debug level", 2, zerolog.DebugLevel},
		{"trace level", 3, zerolog.TraceLevel},
		{"high verbosity defaults to trace", 5, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			t.Setenv(EnvLogFile, "")
			t.Setenv("XDG_STATE_HOME", tempDir)

			SetupLogger(tt.verbosity)

			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())

			logPath := filepath.Join(tempDir, "bootonce", "bootonce.log")
			_, err := os.Stat(logPath)
			assert.NoError(t, err, "log file should exist at %s", logPath)
		})
	}
}

func TestSetupLoggerWritesInfoToFileWhenQuiet(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")
	t.Setenv(EnvLogFile, logPath)

	SetupLogger(0)
	logger := GetLogger("test")
	logger.Info().Msg("marker line")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "marker line")
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestLogFilePath(t *testing.T) {
	t.Run("explicit override", func(t *testing.T) {
		t.Setenv(EnvLogFile, "/tmp/custom.log")
		assert.Equal(t, "/tmp/custom.log", LogFilePath())
	})

	t.Run("with XDG_STATE_HOME", func(t *testing.T) {
		t.Setenv(EnvLogFile, "")
		t.Setenv("XDG_STATE_HOME", "/custom/state")
		assert.Equal(t, filepath.Join("/custom/state", "bootonce", "bootonce.log"), LogFilePath())
	})

	t.Run("without XDG_STATE_HOME", func(t *testing.T) {
		t.Setenv(EnvLogFile, "")
		t.Setenv("XDG_STATE_HOME", "")
		got := filepath.ToSlash(LogFilePath())
		assert.True(t, strings.HasSuffix(got, "bootonce/bootonce.log"), got)
	})
}

func TestGetLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)

	logger := GetLogger("guard")
	logger.Warn().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"guard"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestNewCaptureLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCaptureLogger(&buf)

	logger.Info().Str("k", "v").Msg("captured")

	assert.Contains(t, buf.String(), `"message":"captured"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	done := LogOperationStart(logger, "backend.initialize")
	done()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "backend.initialize"))
	assert.Contains(t, out, "Operation started")
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "duration")
}
