//go:build !windows

package ipc

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"toastcall/internal/identity"
)

// address returns the Unix Domain Socket path for id.
func address(id identity.Identity) string {
	return filepath.Join(os.TempDir(), id.Normalized()+".sock")
}

// listen creates a Unix Domain Socket listener, replacing a socket file left
// behind by a process that did not shut down cleanly.
func listen(addr string) (net.Listener, error) {
	if err := os.Remove(addr); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(addr, 0600); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

// dial connects to the Unix Domain Socket at addr.
func dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", addr)
}
