package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"toastcall/internal/core"
)

// Listener accepts connections on an Endpoint and yields one Message per
// authenticated connection.
type Listener struct {
	ep        Endpoint
	ln        net.Listener
	closed    chan struct{}
	closeOnce sync.Once
}

// Listen binds ep.
func Listen(ep Endpoint) (*Listener, error) {
	ln, err := listen(ep.Address)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", ep.Address, err)
	}
	core.Log.Debugf("IPC", "Listening on %s", ep.Address)
	return &Listener{
		ep:     ep,
		ln:     ln,
		closed: make(chan struct{}),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() string { return l.ep.Address }

// Receive blocks until a client authenticates and delivers a Message.
// Connections that fail authentication or send a broken frame are dropped
// and accepting continues. Cancelling ctx closes the listener.
func (l *Listener) Receive(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.closed:
				if ctx.Err() != nil {
					return Message{}, ctx.Err()
				}
				return Message{}, ErrClosed
			default:
			}
			return Message{}, fmt.Errorf("ipc: accept: %w", err)
		}

		msg, err := l.serve(conn)
		conn.Close()
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, ErrAuth) {
			core.Log.Warnf("IPC", "Rejected connection on %s: %v", l.ep.Address, err)
		} else {
			core.Log.Warnf("IPC", "Dropped connection on %s: %v", l.ep.Address, err)
		}
	}
}

func (l *Listener) serve(conn net.Conn) (Message, error) {
	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return Message{}, fmt.Errorf("ipc: set deadline: %w", err)
	}
	r := bufio.NewReader(conn)
	if err := serverHandshake(conn, r, l.ep.Key); err != nil {
		return Message{}, err
	}
	msg, err := readMessage(r)
	if err != nil {
		return Message{}, err
	}
	if err := writeBytes(conn, ack); err != nil {
		// The message arrived; a sender that misses the ack reports it.
		core.Log.Debugf("IPC", "Ack for %s not delivered: %v", msg.ID, err)
	}
	return msg, nil
}

// Close stops accepting. Safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.ln.Close()
	})
	return err
}
