package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelWarn)
	l.SetOutput(&buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "logger_test.go")
}

func TestGlobalHelpers_UseInstalledLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelDebug)
	l.SetOutput(&buf)
	SetLogger(l)
	t.Cleanup(func() { SetLogger(nil) })

	Debug("debug line")
	Error("error line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[DEBUG]")
	assert.Contains(t, lines[1], "[ERROR]")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"WaRn":    LevelWarn,
		" error ": LevelError,
		"fatal":   LevelFatal,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), "ParseLevel(%q)", input)
	}
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "INFO", LogLevel(42).String())
}

func TestFileLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ctxdoc.log")
	fl, err := NewFileLogger(path, LevelInfo)
	require.NoError(t, err)

	fl.Debug("skipped")
	fl.Info("opened %s", "ch1.txt")
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "opened ch1.txt")
	assert.NotContains(t, string(data), "skipped")
}
