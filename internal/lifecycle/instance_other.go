//go:build !windows

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"toastcall/internal/identity"
)

// instanceLock is an exclusive flock on a lock file next to the marker. The
// lock file is never removed, so every process contends on the same inode.
type instanceLock struct {
	f *os.File
}

func lockPath(markerPath string) string {
	return strings.TrimSuffix(markerPath, ".pid") + ".lock"
}

// tryLockInstance takes the instance lock without blocking. It returns
// ErrAlreadyRunning while another process holds it.
func tryLockInstance(_ identity.Identity, markerPath string) (*instanceLock, error) {
	path := lockPath(markerPath)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: open lock %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("lifecycle: lock %s: %w", path, err)
	}
	return &instanceLock{f: f}, nil
}

func (l *instanceLock) unlock() {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}
