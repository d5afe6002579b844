package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ForwardConfig bounds how long a relaunched process keeps trying to reach
// the listener of the running instance.
type ForwardConfig struct {
	// Interval is the pause between connection attempts.
	Interval time.Duration `yaml:"interval,omitempty"`
	// Timeout is the total budget. Zero retries until the process is killed.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// AppID is the user-visible application name shown on toasts.
	AppID string `yaml:"app_id"`
	// Executable is the program the protocol association relaunches.
	// Empty means the running executable.
	Executable string `yaml:"executable,omitempty"`
	// Script is an optional argument placed before the activation URL.
	Script string `yaml:"script,omitempty"`
	// OverrideRegistration rewrites an existing protocol association.
	OverrideRegistration bool `yaml:"override_registration,omitempty"`
	// Icon is an absolute path applied to every toast.
	Icon string `yaml:"icon,omitempty"`

	Forward        ForwardConfig `yaml:"forward,omitempty"`
	NotifyThrottle time.Duration `yaml:"notify_throttle,omitempty"`
	Logging        LogConfig     `yaml:"logging,omitempty"`
}

// ConfigManager handles loading, saving, and hot-reloading configuration.
type ConfigManager struct {
	mu       sync.RWMutex
	config   Config
	filePath string
	bus      *EventBus
}

// NewConfigManager creates a config manager that reads from the given file.
func NewConfigManager(filePath string, bus *EventBus) *ConfigManager {
	return &ConfigManager{
		filePath: filePath,
		bus:      bus,
	}
}

// DefaultConfig returns a valid configuration for an application called "toastcall".
func DefaultConfig() Config {
	return Config{
		AppID: "toastcall",
		Forward: ForwardConfig{
			Interval: 100 * time.Millisecond,
			Timeout:  5 * time.Second,
		},
		NotifyThrottle: 30 * time.Second,
	}
}

// applyDefaults fills zero values that have a non-zero default.
// Forward.Timeout stays zero when the file asks for unbounded retries.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.AppID == "" {
		cfg.AppID = def.AppID
	}
	if cfg.Forward.Interval <= 0 {
		cfg.Forward.Interval = def.Forward.Interval
	}
	if cfg.NotifyThrottle < 0 {
		cfg.NotifyThrottle = 0
	}
}

// Load reads and parses the configuration from disk.
// If the config file does not exist, it creates one with default values.
func (cm *ConfigManager) Load() error {
	data, err := os.ReadFile(cm.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			Log.Infof("Config", "Config %s not found, creating default config", cm.filePath)
			cm.mu.Lock()
			cm.config = DefaultConfig()
			cm.mu.Unlock()
			if saveErr := cm.Save(); saveErr != nil {
				return fmt.Errorf("[Config] failed to create default config: %w", saveErr)
			}
			return nil
		}
		return fmt.Errorf("[Config] failed to read config %s: %w", cm.filePath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("[Config] failed to parse config: %w", err)
	}
	applyDefaults(&cfg)

	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()

	cm.bus.Publish(Event{Type: EventConfigReloaded})
	return nil
}

// Save writes the current configuration to disk.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	data, err := yaml.Marshal(&cm.config)
	cm.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("[Config] failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.filePath, data, 0644); err != nil {
		return fmt.Errorf("[Config] failed to write config %s: %w", cm.filePath, err)
	}

	return nil
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Watch reloads the configuration whenever the file is written, until ctx is
// cancelled. The parent directory is watched so that editors which replace
// the file via rename are picked up too. A reload that fails to parse keeps
// the previous configuration.
func (cm *ConfigManager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("[Config] failed to create watcher: %w", err)
	}
	target := filepath.Clean(cm.filePath)
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return fmt.Errorf("[Config] failed to watch %s: %w", target, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := cm.Load(); err != nil {
					Log.Warnf("Config", "Reload of %s failed: %v", target, err)
					continue
				}
				Log.Infof("Config", "Reloaded %s", target)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				Log.Warnf("Config", "Watcher error: %v", err)
			}
		}
	}()
	return nil
}
