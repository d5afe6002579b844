// Package ipc is the one-shot, authenticated channel between a relaunched
// process and the running instance: Named Pipes on Windows, Unix Domain
// Sockets elsewhere. Each connection carries exactly one Message.
//
// Authentication is a mutual challenge/response keyed by the normalized
// application identity. It stops unrelated local processes that do not know
// the identity from forging dispatch requests, but the key is derivable
// from the application name, so it is not a security boundary.
package ipc

import (
	"errors"
	"time"

	"toastcall/internal/identity"
)

var (
	ErrAuth        = errors.New("ipc: authentication failed")
	ErrBadFrame    = errors.New("ipc: malformed frame")
	ErrClosed      = errors.New("ipc: listener closed")
	ErrUnreachable = errors.New("ipc: listener unreachable")
)

// handshakeTimeout bounds every per-connection exchange, so a stuck peer
// cannot hold the accept loop.
const handshakeTimeout = 5 * time.Second

// Endpoint is the address and shared key both roles derive from an identity.
type Endpoint struct {
	Address string
	Key     []byte
}

// EndpointFor derives the endpoint for id.
func EndpointFor(id identity.Identity) Endpoint {
	return Endpoint{
		Address: address(id),
		Key:     []byte(id.Normalized()),
	}
}

// Message is the value carried by one connection.
type Message struct {
	// ID correlates sender and listener log lines.
	ID string
	// Callback is the symbolic callback name.
	Callback string
	// PID is the sender's process id.
	PID int
}
