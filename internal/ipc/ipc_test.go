//go:build !windows

package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toastcall/internal/identity"
)

// testEndpoint keeps socket paths short; t.TempDir paths can exceed the
// sun_path limit.
func testEndpoint(t *testing.T, key string) Endpoint {
	t.Helper()
	dir, err := os.MkdirTemp("", "tc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return Endpoint{Address: filepath.Join(dir, "l.sock"), Key: []byte(key)}
}

type received struct {
	msg Message
	err error
}

func receiveAsync(ctx context.Context, l *Listener) <-chan received {
	ch := make(chan received, 1)
	go func() {
		m, err := l.Receive(ctx)
		ch <- received{m, err}
	}()
	return ch
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{Interval: 20 * time.Millisecond, Timeout: 2 * time.Second}
}

func TestEndpointFor(t *testing.T) {
	id, err := identity.New("My App")
	require.NoError(t, err)
	ep := EndpointFor(id)
	require.Equal(t, []byte("My-App"), ep.Key)
	require.Equal(t, filepath.Join(os.TempDir(), "My-App.sock"), ep.Address)
}

func TestSendReceive(t *testing.T) {
	ep := testEndpoint(t, "My-App")
	l, err := Listen(ep)
	require.NoError(t, err)
	defer l.Close()

	ch := receiveAsync(context.Background(), l)

	s, err := Dial(context.Background(), ep, fastPolicy())
	require.NoError(t, err)
	id, err := s.Send("quit")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case r := <-ch:
		require.NoError(t, r.err)
		require.Equal(t, "quit", r.msg.Callback)
		require.Equal(t, id, r.msg.ID)
		require.Equal(t, os.Getpid(), r.msg.PID)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not receive the message")
	}
}

func TestDial_WrongKeyIsRejectedAndListenerSurvives(t *testing.T) {
	ep := testEndpoint(t, "My-App")
	l, err := Listen(ep)
	require.NoError(t, err)
	defer l.Close()

	ch := receiveAsync(context.Background(), l)

	forged := Endpoint{Address: ep.Address, Key: []byte("Other-App")}
	_, err = Dial(context.Background(), forged, RetryPolicy{Interval: 20 * time.Millisecond, Timeout: 200 * time.Millisecond})
	require.ErrorIs(t, err, ErrUnreachable)

	s, err := Dial(context.Background(), ep, fastPolicy())
	require.NoError(t, err)
	_, err = s.Send("ping")
	require.NoError(t, err)

	r := <-ch
	require.NoError(t, r.err)
	require.Equal(t, "ping", r.msg.Callback)
}

func TestReceive_DropsGarbage(t *testing.T) {
	ep := testEndpoint(t, "k")
	l, err := Listen(ep)
	require.NoError(t, err)
	defer l.Close()

	ch := receiveAsync(context.Background(), l)

	raw, err := net.Dial("unix", ep.Address)
	require.NoError(t, err)
	_, err = raw.Write([]byte{0xff, 0xff, 0xff, 0xff, 0x0f, 'x'})
	require.NoError(t, err)
	raw.Close()

	s, err := Dial(context.Background(), ep, fastPolicy())
	require.NoError(t, err)
	_, err = s.Send("after-garbage")
	require.NoError(t, err)

	r := <-ch
	require.NoError(t, r.err)
	require.Equal(t, "after-garbage", r.msg.Callback)
}

func TestDial_WaitsForListener(t *testing.T) {
	ep := testEndpoint(t, "k")

	type dialed struct {
		s   *Sender
		err error
	}
	dch := make(chan dialed, 1)
	go func() {
		s, err := Dial(context.Background(), ep, fastPolicy())
		dch <- dialed{s, err}
	}()

	time.Sleep(150 * time.Millisecond)
	l, err := Listen(ep)
	require.NoError(t, err)
	defer l.Close()
	ch := receiveAsync(context.Background(), l)

	d := <-dch
	require.NoError(t, d.err)
	_, err = d.s.Send("late")
	require.NoError(t, err)
	require.Equal(t, "late", (<-ch).msg.Callback)
}

func TestDial_UnboundedRetryStopsWithContext(t *testing.T) {
	ep := testEndpoint(t, "k")
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, ep, RetryPolicy{Interval: 20 * time.Millisecond})
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestReceive_CancelAndClose(t *testing.T) {
	ep := testEndpoint(t, "k")
	l, err := Listen(ep)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := receiveAsync(ctx, l)
	cancel()
	r := <-ch
	require.True(t, errors.Is(r.err, context.Canceled), "got %v", r.err)

	_, err = l.Receive(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, l.Close())
}
