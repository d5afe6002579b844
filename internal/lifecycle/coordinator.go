// Package lifecycle decides, once per process start, whether this process
// becomes the listening instance, forwards a clicked callback to the
// instance that already listens, or runs the callback itself.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"toastcall/internal/binding"
	"toastcall/internal/core"
	"toastcall/internal/dispatch"
	"toastcall/internal/identity"
	"toastcall/internal/ipc"
)

var (
	ErrListenerUnreachable = errors.New("lifecycle: listening instance unreachable")
	ErrNoRegistry          = errors.New("lifecycle: registry is required")
	ErrStarted             = errors.New("lifecycle: already started")
)

// A process that finds the instance lock taken retries for lockWait before
// concluding that a listener owns it.
const (
	lockWait = 500 * time.Millisecond
	lockPoll = 20 * time.Millisecond
)

// Role is what Start made of this process.
type Role int

const (
	RoleNone Role = iota
	// RoleListener owns the channel and dispatches incoming callbacks.
	RoleListener
	// RoleForwarded handed its callback to the listener; Exit was called.
	RoleForwarded
	// RoleDirect found no live listener and ran the callback itself.
	RoleDirect
)

func (r Role) String() string {
	switch r {
	case RoleListener:
		return "listener"
	case RoleForwarded:
		return "forwarded"
	case RoleDirect:
		return "direct"
	default:
		return "none"
	}
}

// Config wires a Coordinator. Only Registry is required.
type Config struct {
	// Registry holds the handlers; its identity names everything else.
	Registry *dispatch.Registry
	// Command is written into the protocol association.
	Command binding.Command
	// Override replaces an existing association.
	Override bool
	// Store defaults to the per-user system store.
	Store binding.Store
	// Endpoint defaults to ipc.EndpointFor(identity).
	Endpoint ipc.Endpoint
	// Retry bounds forwarding; zero value means ipc.DefaultRetryPolicy.
	Retry ipc.RetryPolicy
	// MarkerDir defaults to os.TempDir().
	MarkerDir string
	Bus       *core.EventBus
	// Exit ends a forwarding process; defaults to os.Exit.
	Exit func(code int)
}

// Coordinator runs the start-up decision and owns whatever it acquired.
type Coordinator struct {
	cfg        Config
	id         identity.Identity
	binder     *binding.Binder
	markerPath string

	mu      sync.Mutex
	started bool
	lock    *instanceLock
	disp    *dispatch.Dispatcher
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}
	id := cfg.Registry.Identity()
	if cfg.Store == nil {
		cfg.Store = binding.NewSystemStore()
	}
	if cfg.Endpoint.Address == "" {
		cfg.Endpoint = ipc.EndpointFor(id)
	}
	if cfg.Retry == (ipc.RetryPolicy{}) {
		cfg.Retry = ipc.DefaultRetryPolicy()
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	return &Coordinator{
		cfg:        cfg,
		id:         id,
		binder:     binding.New(cfg.Store),
		markerPath: MarkerPath(cfg.MarkerDir, id),
	}, nil
}

// MarkerPath returns the liveness marker this coordinator uses.
func (c *Coordinator) MarkerPath() string { return c.markerPath }

// Dispatcher returns the running dispatcher, or nil unless Start returned
// RoleListener.
func (c *Coordinator) Dispatcher() *dispatch.Dispatcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disp
}

// Update runs a pending main-thread callback. It is a no-op outside the
// listener role, so hosts can call it unconditionally from their loop.
func (c *Coordinator) Update() bool {
	if d := c.Dispatcher(); d != nil {
		return d.Update()
	}
	return false
}

// Start registers the protocol association, then inspects args (program
// name excluded) to pick a role. Handlers must be registered before Start:
// a protocol launch without a live listener resolves its callback
// immediately.
func (c *Coordinator) Start(ctx context.Context, args []string) (Role, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return RoleNone, ErrStarted
	}
	c.started = true
	c.mu.Unlock()

	res, err := c.binder.Register(c.id, c.cfg.Command, binding.Options{Override: c.cfg.Override})
	if err != nil {
		return RoleNone, err
	}
	core.Log.Debugf("Lifecycle", "Association for %s: %s", c.id.Normalized(), res)

	act, err := identity.Detect(c.id, args)
	if err != nil {
		return RoleNone, err
	}
	if act.Protocol {
		return c.activate(ctx, act.Callback)
	}
	return c.listen(ctx)
}

// waitLock takes the instance lock, retrying for lockWait while another
// process holds it. A relaunch clearing a stale marker holds the lock only
// briefly. If settled reports true the holder is taken to be a listener and
// waitLock gives up at once.
func (c *Coordinator) waitLock(ctx context.Context, settled func() bool) (*instanceLock, error) {
	deadline := time.Now().Add(lockWait)
	for {
		lock, err := tryLockInstance(c.id, c.markerPath)
		if !errors.Is(err, ErrAlreadyRunning) {
			return lock, err
		}
		if settled() || time.Now().After(deadline) {
			return nil, ErrAlreadyRunning
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}

func (c *Coordinator) markerPresent() bool {
	present, err := markerExists(c.markerPath)
	return err == nil && present
}

func (c *Coordinator) activate(ctx context.Context, name string) (Role, error) {
	lock, err := c.waitLock(ctx, c.markerPresent)
	if errors.Is(err, ErrAlreadyRunning) {
		return c.forward(ctx, name)
	}
	if err != nil {
		return RoleNone, err
	}

	// Holding the lock means no listener exists, so any marker is stale.
	// Listeners write their marker only under the lock.
	if c.markerPresent() {
		core.Log.Infof("Lifecycle", "Removing stale marker %s", c.markerPath)
	}
	err = removeMarker(c.markerPath)
	lock.unlock()
	if err != nil {
		return RoleNone, err
	}

	core.Log.Infof("Lifecycle", "No running instance, invoking %q directly", name)
	if err := c.cfg.Registry.Invoke(name); err != nil {
		return RoleNone, err
	}
	c.cfg.Bus.Publish(core.Event{
		Type:    core.EventCallbackInvoked,
		Payload: core.CallbackPayload{Name: name, Source: core.SourceDirect},
	})
	return RoleDirect, nil
}

func (c *Coordinator) forward(ctx context.Context, name string) (Role, error) {
	pid, err := ReadMarker(c.markerPath)
	if err != nil {
		core.Log.Debugf("Lifecycle", "Marker unreadable: %v", err)
	}

	s, err := ipc.Dial(ctx, c.cfg.Endpoint, c.cfg.Retry)
	if err != nil {
		return RoleNone, fmt.Errorf("%w: pid %d: %v", ErrListenerUnreachable, pid, err)
	}
	msgID, err := s.Send(name)
	if err != nil {
		return RoleNone, fmt.Errorf("%w: pid %d: %v", ErrListenerUnreachable, pid, err)
	}
	core.Log.Infof("Lifecycle", "Forwarded %q to pid %d (message %s)", name, pid, msgID)
	c.cfg.Bus.Publish(core.Event{
		Type:    core.EventCallbackForwarded,
		Payload: core.CallbackPayload{Name: name, Source: core.SourceChannel},
	})

	c.cfg.Exit(0)
	return RoleForwarded, nil
}

func (c *Coordinator) listen(ctx context.Context) (Role, error) {
	lock, err := c.waitLock(ctx, func() bool { return false })
	if err != nil {
		return RoleNone, err
	}
	ln, err := ipc.Listen(c.cfg.Endpoint)
	if err != nil {
		lock.unlock()
		return RoleNone, err
	}
	// A stale marker is simply overwritten.
	if err := writeMarker(c.markerPath); err != nil {
		ln.Close()
		lock.unlock()
		return RoleNone, err
	}
	d := dispatch.New(c.cfg.Registry, ln, c.cfg.Bus)
	if err := d.Start(ctx); err != nil {
		ln.Close()
		removeMarker(c.markerPath)
		lock.unlock()
		return RoleNone, err
	}

	c.mu.Lock()
	c.lock = lock
	c.disp = d
	c.mu.Unlock()

	core.Log.Infof("Lifecycle", "Listening as pid %d, marker %s", os.Getpid(), c.markerPath)
	return RoleListener, nil
}

// Close is the exit hook: it stops the dispatcher, then removes the marker
// and releases the instance lock. Safe to call more than once and
// in any role.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	d, lock := c.disp, c.lock
	c.disp, c.lock = nil, nil
	c.mu.Unlock()

	if d != nil {
		d.Stop()
	}
	if lock != nil {
		// The marker goes first, while the lock still guards it.
		err := removeMarker(c.markerPath)
		lock.unlock()
		if err != nil {
			return err
		}
		core.Log.Debugf("Lifecycle", "Released %s", c.markerPath)
	}
	return nil
}
