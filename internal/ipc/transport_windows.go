//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"

	"toastcall/internal/identity"
)

// address returns the Named Pipe path for id. Dashes are dropped from the
// pipe name; the normalized identity still serves as the auth key.
func address(id identity.Identity) string {
	return `\\.\pipe\` + strings.ReplaceAll(id.Normalized(), "-", "")
}

// listen creates a Named Pipe listener that only the current user may open.
func listen(addr string) (net.Listener, error) {
	sddl, err := currentUserSDDL()
	if err != nil {
		return nil, err
	}
	cfg := &winio.PipeConfig{
		SecurityDescriptor: sddl,
		MessageMode:        false,
		InputBufferSize:    4 * 1024,
		OutputBufferSize:   4 * 1024,
	}
	return winio.ListenPipe(addr, cfg)
}

// dial connects to the Named Pipe at addr.
func dial(ctx context.Context, addr string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, addr)
}

// currentUserSDDL grants full access to the SID of the process token's user.
func currentUserSDDL() (string, error) {
	tu, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("ipc: query token user: %w", err)
	}
	return "D:P(A;;GA;;;" + tu.User.Sid.String() + ")", nil
}
