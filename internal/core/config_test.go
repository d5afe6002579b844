package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigManager_LoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cm := NewConfigManager(path, nil)

	require.NoError(t, cm.Load())
	require.Equal(t, DefaultConfig(), cm.Get())
	require.FileExists(t, path)

	// The written default parses back to the same values.
	again := NewConfigManager(path, nil)
	require.NoError(t, again.Load())
	require.Equal(t, DefaultConfig(), again.Get())
}

func TestConfigManager_LoadParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_id: "My App"
script: C:\demo\main.py
override_registration: true
forward:
  interval: 50ms
  timeout: 0s
notify_throttle: 1m
logging:
  level: debug
  components:
    ipc: warn
`), 0644))

	bus := NewEventBus()
	reloaded := 0
	bus.Subscribe(EventConfigReloaded, func(Event) { reloaded++ })

	cm := NewConfigManager(path, bus)
	require.NoError(t, cm.Load())
	cfg := cm.Get()

	require.Equal(t, "My App", cfg.AppID)
	require.Equal(t, `C:\demo\main.py`, cfg.Script)
	require.True(t, cfg.OverrideRegistration)
	require.Equal(t, 50*time.Millisecond, cfg.Forward.Interval)
	require.Zero(t, cfg.Forward.Timeout, "explicit zero keeps retries unbounded")
	require.Equal(t, time.Minute, cfg.NotifyThrottle)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "warn", cfg.Logging.Components["ipc"])
	require.Equal(t, 1, reloaded)
}

func TestConfigManager_LoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_id: [unterminated"), 0644))
	require.Error(t, NewConfigManager(path, nil).Load())
}

func TestConfigManager_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	bus := NewEventBus()
	reloaded := make(chan struct{}, 4)
	bus.Subscribe(EventConfigReloaded, func(Event) { reloaded <- struct{}{} })

	cm := NewConfigManager(path, bus)
	require.NoError(t, cm.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cm.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("app_id: Renamed\n"), 0644))

	require.Eventually(t, func() bool {
		select {
		case <-reloaded:
		default:
		}
		return cm.Get().AppID == "Renamed"
	}, 3*time.Second, 20*time.Millisecond)
}
