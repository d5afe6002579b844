// Package dispatch routes callback names received from relaunched processes
// to registered handlers. Handlers run on the listener goroutine unless they
// were registered with MainThread, in which case they wait in a single-slot
// queue until the host calls Update from its own loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"toastcall/internal/core"
	"toastcall/internal/ipc"
)

// State is the dispatcher's position in its accept loop.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateResolving
	StateExecuting
	StateEnqueued
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateResolving:
		return "resolving"
	case StateExecuting:
		return "executing"
	case StateEnqueued:
		return "enqueued"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// receiveBackoff spaces out retries after an unexpected accept failure.
const receiveBackoff = 100 * time.Millisecond

var ErrAlreadyStarted = errors.New("dispatch: already started")

// Receiver yields one message per call. *ipc.Listener implements it.
type Receiver interface {
	Receive(ctx context.Context) (ipc.Message, error)
	Close() error
}

// Dispatcher owns the accept loop.
type Dispatcher struct {
	reg   *Registry
	queue *PendingQueue
	recv  Receiver
	bus   *core.EventBus

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a dispatcher over reg that reads from recv. bus may be nil.
func New(reg *Registry, recv Receiver, bus *core.EventBus) *Dispatcher {
	return &Dispatcher{
		reg:   reg,
		queue: NewPendingQueue(),
		recv:  recv,
		bus:   bus,
	}
}

// Registry returns the registry handlers are resolved from.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// State reports the current loop state.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

func (d *Dispatcher) setState(s State) { d.state.Store(int32(s)) }

// Pending reports how many handlers wait for Update (0 or 1).
func (d *Dispatcher) Pending() int { return d.queue.Len() }

// Start launches the accept loop on its own goroutine. The loop runs until
// ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return ErrAlreadyStarted
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.setState(StateListening)
	go d.loop(ctx, d.done)
	core.Log.Infof("Dispatch", "Listening for callbacks of %s", d.reg.Identity().Normalized())
	return nil
}

// Stop cancels the loop, closes the receiver and waits for the loop to exit.
// Calling it from a handler that runs on the loop goroutine deadlocks;
// such handlers must be registered with MainThread.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.recv.Close()
	<-done
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer d.setState(StateStopped)

	for {
		d.setState(StateListening)
		msg, err := d.recv.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ipc.ErrClosed) {
				return
			}
			core.Log.Errorf("Dispatch", "Receive failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}

		core.Log.Debugf("Dispatch", "Message %s from pid %d: %q", msg.ID, msg.PID, msg.Callback)
		if err := d.Dispatch(ctx, msg.Callback, core.SourceChannel); err != nil && ctx.Err() != nil {
			return
		}
	}
}

// Dispatch resolves name and either runs its handler on the calling
// goroutine or enqueues it for Update. Unknown names are logged and
// reported as ErrNotRegistered. For a main-thread handler Dispatch blocks
// while the queue is full; it returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Dispatch(ctx context.Context, name, source string) error {
	d.setState(StateResolving)
	e, ok := d.reg.lookup(name)
	if !ok {
		core.Log.Warnf("Dispatch", "No callback registered as %q, ignoring", name)
		d.bus.Publish(core.Event{
			Type:    core.EventCallbackUnknown,
			Payload: core.CallbackPayload{Name: name, Source: source},
		})
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	if e.mainThread {
		d.setState(StateEnqueued)
		if err := d.queue.Put(ctx, name, e.handler); err != nil {
			core.Log.Warnf("Dispatch", "Callback %q not queued: %v", name, err)
			return err
		}
		core.Log.Debugf("Dispatch", "Callback %q queued for main thread", name)
		d.bus.Publish(core.Event{
			Type:    core.EventCallbackQueued,
			Payload: core.CallbackPayload{Name: name, Source: source},
		})
		return nil
	}

	d.setState(StateExecuting)
	d.run(name, e.handler, source)
	return nil
}

// Update runs the queued main-thread handler, if any, on the calling
// goroutine. It reports whether a handler ran. Call it from the host loop.
func (d *Dispatcher) Update() bool {
	name, h, ok := d.queue.Poll()
	if !ok {
		return false
	}
	d.run(name, h, core.SourcePoll)
	return true
}

func (d *Dispatcher) run(name string, h Handler, source string) {
	defer func() {
		if r := recover(); r != nil {
			core.Log.Errorf("Dispatch", "Callback %q panicked: %v", name, r)
		}
	}()
	h()
	d.bus.Publish(core.Event{
		Type:    core.EventCallbackInvoked,
		Payload: core.CallbackPayload{Name: name, Source: source},
	})
}
