package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBufferLogger(cfg LogConfig) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(cfg)
	l.SetOutput(&buf)
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"none":    LevelOff,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestLogger_GlobalLevelFilters(t *testing.T) {
	l, buf := newBufferLogger(LogConfig{Level: "warn"})

	l.Infof("IPC", "hidden %d", 1)
	require.Empty(t, buf.String())

	l.Warnf("IPC", "shown %d", 2)
	require.Contains(t, buf.String(), "shown 2")
	require.Contains(t, buf.String(), "component=IPC")
}

func TestLogger_ComponentOverride(t *testing.T) {
	l, buf := newBufferLogger(LogConfig{
		Level:      "error",
		Components: map[string]string{"dispatch": "debug"},
	})

	l.Debugf("Dispatch", "resolving %q", "quit")
	l.Warnf("Lifecycle", "not shown")

	out := buf.String()
	require.Contains(t, out, `resolving \"quit\"`)
	require.NotContains(t, out, "not shown")
}

func TestLogger_ApplyReplacesLevels(t *testing.T) {
	l, buf := newBufferLogger(LogConfig{Level: "off"})
	l.Errorf("Toast", "first")
	require.Empty(t, buf.String())

	l.Apply(LogConfig{Level: "info"})
	l.Infof("Toast", "second")
	require.Contains(t, buf.String(), "second")
}
