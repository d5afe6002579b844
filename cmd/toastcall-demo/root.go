package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"toastcall/internal/binding"
	"toastcall/internal/core"
	"toastcall/internal/dispatch"
	"toastcall/internal/identity"
	"toastcall/internal/ipc"
	"toastcall/internal/lifecycle"
	"toastcall/internal/toast"
)

// pollInterval is how often the host loop drains main-thread callbacks.
const pollInterval = 100 * time.Millisecond

var configPath string

var rootCmd = &cobra.Command{
	Use:   "toastcall-demo [activation-url]",
	Short: "Show a toast with buttons that call back into this process",
	Long: `Show a toast with "Ping" and "Quit" buttons.

Clicking a button relaunches this executable with the button's action URL.
The relaunched process hands the callback to the running instance and exits;
if no instance is running it runs the callback itself.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "toastcall.yaml", "path to configuration file")
}

// app is what every subcommand builds from the configuration.
type app struct {
	cfgManager *core.ConfigManager
	cfg        core.Config
	bus        *core.EventBus
	id         identity.Identity
	notifier   *toast.Notifier
}

func loadApp() (*app, error) {
	bus := core.NewEventBus()
	cm := core.NewConfigManager(resolveRelativeToExe(configPath), bus)
	if err := cm.Load(); err != nil {
		return nil, err
	}
	cfg := cm.Get()
	core.Log.Apply(cfg.Logging)
	bus.Subscribe(core.EventConfigReloaded, func(core.Event) {
		core.Log.Apply(cm.Get().Logging)
	})

	id, err := identity.New(cfg.AppID)
	if err != nil {
		return nil, err
	}
	return &app{
		cfgManager: cm,
		cfg:        cfg,
		bus:        bus,
		id:         id,
		notifier:   toast.NewNotifier(cfg.AppID, cfg.Icon, cfg.NotifyThrottle),
	}, nil
}

// command returns the invocation the protocol association should run.
func (a *app) command() (binding.Command, error) {
	exe := a.cfg.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return binding.Command{}, fmt.Errorf("resolve executable: %w", err)
		}
	}
	return binding.Command{Executable: exe, Script: a.cfg.Script}, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	command, err := a.command()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var quitOnce sync.Once
	quit := make(chan struct{})

	reg := dispatch.NewRegistry(a.id)
	ping, err := reg.Register("ping", func() {
		n, err := a.notifier.Create("Pong", fmt.Sprintf("Handled by pid %d", os.Getpid()))
		if err != nil {
			core.Log.Warnf("Demo", "Build pong toast: %v", err)
			return
		}
		a.notifier.Notify(n)
	})
	if err != nil {
		return err
	}
	quitCb, err := reg.Register("quit", func() {
		core.Log.Infof("Demo", "Quit requested")
		quitOnce.Do(func() { close(quit) })
	}, dispatch.MainThread())
	if err != nil {
		return err
	}

	coord, err := lifecycle.New(lifecycle.Config{
		Registry: reg,
		Command:  command,
		Override: a.cfg.OverrideRegistration,
		Retry: ipc.RetryPolicy{
			Interval: a.cfg.Forward.Interval,
			Timeout:  a.cfg.Forward.Timeout,
		},
		Bus: a.bus,
	})
	if err != nil {
		return err
	}

	role, err := coord.Start(ctx, args)
	if err != nil {
		return err
	}
	if role != lifecycle.RoleListener {
		core.Log.Infof("Demo", "Done as %s", role)
		return nil
	}
	defer coord.Close()

	if err := a.cfgManager.Watch(ctx); err != nil {
		core.Log.Warnf("Demo", "Config watch disabled: %v", err)
	}

	n, err := a.notifier.Create("toastcall", "Click a button to call back into pid "+fmt.Sprint(os.Getpid()),
		toast.WithLaunchCallback(ping))
	if err != nil {
		return err
	}
	n.SetAudio(toast.Default, false)
	if err := n.AddCallback("Ping", ping); err != nil {
		return err
	}
	if err := n.AddCallback("Quit", quitCb); err != nil {
		return err
	}
	if _, err := a.notifier.Notify(n); err != nil {
		core.Log.Warnf("Demo", "Toast not shown, waiting for callbacks anyway: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			coord.Update()
		case <-quit:
			return nil
		case s := <-sig:
			core.Log.Infof("Demo", "Received %s, shutting down", s)
			return nil
		}
	}
}

// resolveRelativeToExe resolves a relative path against the directory containing
// the running executable, so a protocol relaunch finds the same config.
func resolveRelativeToExe(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		core.Log.Warnf("Demo", "Cannot determine executable path, using %q as-is: %v", path, err)
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}
