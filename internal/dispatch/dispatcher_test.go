package dispatch

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"toastcall/internal/core"
	"toastcall/internal/identity"
	"toastcall/internal/ipc"
)

type fakeReceiver struct {
	msgs   chan ipc.Message
	calls  atomic.Int32
	closed chan struct{}
	once   sync.Once
}

func newFakeReceiver() *fakeReceiver {
	return &fakeReceiver{
		msgs:   make(chan ipc.Message),
		closed: make(chan struct{}),
	}
}

func (f *fakeReceiver) Receive(ctx context.Context) (ipc.Message, error) {
	f.calls.Add(1)
	select {
	case m := <-f.msgs:
		return m, nil
	case <-f.closed:
		return ipc.Message{}, ipc.ErrClosed
	case <-ctx.Done():
		return ipc.Message{}, ctx.Err()
	}
}

func (f *fakeReceiver) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// deliver hands a message to the loop; it returns once the loop has taken it.
func (f *fakeReceiver) deliver(t *testing.T, name string) {
	t.Helper()
	select {
	case f.msgs <- ipc.Message{ID: name, Callback: name}:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not accept %q", name)
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	id, err := identity.New("My App")
	require.NoError(t, err)
	return NewRegistry(id)
}

func startDispatcher(t *testing.T, reg *Registry, bus *core.EventBus) (*Dispatcher, *fakeReceiver) {
	t.Helper()
	recv := newFakeReceiver()
	d := New(reg, recv, bus)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	return d, recv
}

func waitEvent(t *testing.T, ch <-chan core.CallbackPayload) core.CallbackPayload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return core.CallbackPayload{}
	}
}

func subscribe(bus *core.EventBus, typ core.EventType) <-chan core.CallbackPayload {
	ch := make(chan core.CallbackPayload, 8)
	bus.Subscribe(typ, func(e core.Event) {
		ch <- e.Payload.(core.CallbackPayload)
	})
	return ch
}

func quit() {}

func TestRegister_HandleCarriesURL(t *testing.T) {
	reg := newTestRegistry(t)

	cb, err := reg.Register("quit", quit, MainThread())
	require.NoError(t, err)
	require.Equal(t, Callback{Name: "quit", URL: "My-App:quit", MainThread: true}, cb)

	url, err := reg.URL("quit")
	require.NoError(t, err)
	require.Equal(t, "My-App:quit", url)
}

func TestRegisterFunc_UsesDeclaredName(t *testing.T) {
	reg := newTestRegistry(t)
	cb, err := reg.RegisterFunc(quit)
	require.NoError(t, err)
	require.Equal(t, "quit", cb.Name)
	require.Equal(t, "My-App:quit", cb.URL)
}

func TestRegister_Rejects(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Register("quit", nil)
	require.ErrorIs(t, err, ErrNilHandler)

	_, err = reg.Register("a:b", quit)
	require.ErrorIs(t, err, identity.ErrInvalidName)

	_, err = reg.URL("missing")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id, _ := identity.New("My App")
		reg := NewRegistry(id)
		names := []string{"a", "b", "c"}

		var got string
		last := map[string]int{}
		ops := rapid.IntRange(1, 20).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			name := rapid.SampledFrom(names).Draw(t, "name")
			tag := i
			if _, err := reg.Register(name, func() { got = name + "#" + strconv.Itoa(tag) }); err != nil {
				t.Fatalf("register: %v", err)
			}
			last[name] = tag
		}
		for name, tag := range last {
			got = ""
			if err := reg.Invoke(name); err != nil {
				t.Fatalf("invoke %q: %v", name, err)
			}
			if want := name + "#" + strconv.Itoa(tag); got != want {
				t.Fatalf("invoke %q ran %q, want %q", name, got, want)
			}
		}
	})
}

func TestDispatch_UnknownNameKeepsListening(t *testing.T) {
	bus := core.NewEventBus()
	unknown := subscribe(bus, core.EventCallbackUnknown)
	invoked := subscribe(bus, core.EventCallbackInvoked)

	reg := newTestRegistry(t)
	_, err := reg.Register("ping", func() {})
	require.NoError(t, err)
	d, recv := startDispatcher(t, reg, bus)

	recv.deliver(t, "nope")
	require.Equal(t, core.CallbackPayload{Name: "nope", Source: core.SourceChannel}, waitEvent(t, unknown))

	recv.deliver(t, "ping")
	require.Equal(t, "ping", waitEvent(t, invoked).Name)

	require.Eventually(t, func() bool { return d.State() == StateListening }, time.Second, 5*time.Millisecond)
}

func TestDispatch_MainThreadHandlerIsQueued(t *testing.T) {
	bus := core.NewEventBus()
	queued := subscribe(bus, core.EventCallbackQueued)

	reg := newTestRegistry(t)
	var ran atomic.Bool
	_, err := reg.Register("quit", func() { ran.Store(true) }, MainThread())
	require.NoError(t, err)
	d, recv := startDispatcher(t, reg, bus)

	require.False(t, d.Update(), "empty poll is a normal outcome")

	recv.deliver(t, "quit")
	waitEvent(t, queued)
	require.Equal(t, 1, d.Pending())
	require.False(t, ran.Load(), "main-thread handler must not run on the listener goroutine")

	require.True(t, d.Update())
	require.True(t, ran.Load())
	require.Equal(t, 0, d.Pending())
}

func TestDispatch_OneMessageAtATime(t *testing.T) {
	reg := newTestRegistry(t)
	started := make(chan string, 2)
	release := make(chan struct{})
	_, err := reg.Register("slow", func() {
		started <- "slow"
		<-release
	})
	require.NoError(t, err)
	_, err = reg.Register("fast", func() { started <- "fast" })
	require.NoError(t, err)

	d, recv := startDispatcher(t, reg, nil)

	recv.deliver(t, "slow")
	require.Equal(t, "slow", <-started)
	require.Equal(t, StateExecuting, d.State())

	// The loop is inside the handler, so nobody is receiving.
	second := make(chan struct{})
	go func() {
		recv.deliver(t, "fast")
		close(second)
	}()
	select {
	case <-second:
		t.Fatal("second message accepted while the first handler was running")
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, int32(1), recv.calls.Load())

	close(release)
	<-second
	require.Equal(t, "fast", <-started)
}

func TestDispatch_FullQueueBlocksProducer(t *testing.T) {
	reg := newTestRegistry(t)
	var order []string
	var mu sync.Mutex
	record := func(s string) Handler {
		return func() {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
		}
	}
	_, err := reg.Register("first", record("first"), MainThread())
	require.NoError(t, err)
	_, err = reg.Register("second", record("second"), MainThread())
	require.NoError(t, err)

	d := New(reg, newFakeReceiver(), nil)
	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, "first", core.SourceChannel))

	done := make(chan error, 1)
	go func() { done <- d.Dispatch(ctx, "second", core.SourceChannel) }()

	select {
	case err := <-done:
		t.Fatalf("second enqueue returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, 1, d.Pending())

	require.True(t, d.Update())
	require.NoError(t, <-done)
	require.True(t, d.Update())
	require.False(t, d.Update())

	require.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_FullQueueGivesUpWithContext(t *testing.T) {
	reg := newTestRegistry(t)
	var ran []string
	_, _ = reg.Register("first", func() { ran = append(ran, "first") }, MainThread())
	_, _ = reg.Register("second", func() { ran = append(ran, "second") }, MainThread())

	d := New(reg, newFakeReceiver(), nil)
	require.NoError(t, d.Dispatch(context.Background(), "first", core.SourceChannel))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Dispatch(ctx, "second", core.SourceChannel), context.DeadlineExceeded)

	require.True(t, d.Update())
	require.False(t, d.Update())
	require.Equal(t, []string{"first"}, ran)
}

func TestDispatch_PanicDoesNotStopLoop(t *testing.T) {
	bus := core.NewEventBus()
	invoked := subscribe(bus, core.EventCallbackInvoked)

	reg := newTestRegistry(t)
	_, _ = reg.Register("boom", func() { panic("boom") })
	_, _ = reg.Register("ok", func() {})
	_, recv := startDispatcher(t, reg, bus)

	recv.deliver(t, "boom")
	recv.deliver(t, "ok")
	require.Equal(t, "ok", waitEvent(t, invoked).Name)
}

func TestStartStop(t *testing.T) {
	reg := newTestRegistry(t)
	d := New(reg, newFakeReceiver(), nil)
	require.Equal(t, StateIdle, d.State())

	d.Stop() // not started: no-op

	require.NoError(t, d.Start(context.Background()))
	require.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)

	d.Stop()
	require.Equal(t, StateStopped, d.State())
	d.Stop()
}
