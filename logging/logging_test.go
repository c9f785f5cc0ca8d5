package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {

	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tc := range tests {
		lvl, err := ParseLevel(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.expected, lvl, tc.name)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewFiltersLevel(t *testing.T) {

	var buf bytes.Buffer

	log, err := New("warn", &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", slog.Int("frames", 3))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "frames=3")
}

func TestErrIncludesLocation(t *testing.T) {

	var buf bytes.Buffer

	log, err := New("info", &buf)
	require.NoError(t, err)

	log.Error("session failed", Err(errors.New("source gone")))

	out := buf.String()
	assert.Contains(t, out, "error.msg=\"source gone\"")
	assert.Contains(t, out, "logging_test.go")
}
