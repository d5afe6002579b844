package ipc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"toastcall/internal/core"
)

// RetryPolicy bounds Dial.
type RetryPolicy struct {
	// Interval is the pause between attempts.
	Interval time.Duration
	// Timeout is the total budget; zero retries until ctx is done.
	Timeout time.Duration
}

// DefaultRetryPolicy covers a listener that is still starting up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Interval: 100 * time.Millisecond,
		Timeout:  5 * time.Second,
	}
}

// Sender is an authenticated connection that carries one Message.
type Sender struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to ep and completes the handshake, retrying both until they
// succeed or the policy runs out.
func Dial(ctx context.Context, ep Endpoint, policy RetryPolicy) (*Sender, error) {
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}
	interval := policy.Interval
	if interval <= 0 {
		interval = DefaultRetryPolicy().Interval
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		s, err := connect(ctx, ep)
		if err == nil {
			return s, nil
		}
		lastErr = err
		core.Log.Debugf("IPC", "Connect attempt %d to %s failed: %v", attempt, ep.Address, err)

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrUnreachable, ep.Address, attempt, lastErr)
		case <-t.C:
		}
	}
}

func connect(ctx context.Context, ep Endpoint) (*Sender, error) {
	conn, err := dial(ctx, ep.Address)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		conn.Close()
		return nil, err
	}
	r := bufio.NewReader(conn)
	if err := clientHandshake(conn, r, ep.Key); err != nil {
		conn.Close()
		return nil, err
	}
	return &Sender{conn: conn, r: r}, nil
}

// Send delivers callback, waits for the listener's ack and closes the
// connection. It returns the message id.
func (s *Sender) Send(callback string) (string, error) {
	defer s.conn.Close()

	msg := Message{
		ID:       uuid.NewString(),
		Callback: callback,
		PID:      os.Getpid(),
	}
	if err := s.conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return "", fmt.Errorf("ipc: set deadline: %w", err)
	}
	if err := writeMessage(s.conn, msg); err != nil {
		return "", err
	}
	reply, err := readBytes(s.r)
	if err != nil {
		return msg.ID, fmt.Errorf("ipc: await ack for %s: %w", msg.ID, err)
	}
	if !bytes.Equal(reply, ack) {
		return msg.ID, fmt.Errorf("%w: unexpected reply to %s", ErrBadFrame, msg.ID)
	}
	return msg.ID, nil
}

// Close drops the connection without sending.
func (s *Sender) Close() error {
	return s.conn.Close()
}
