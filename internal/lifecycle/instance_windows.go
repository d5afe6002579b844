//go:build windows

package lifecycle

import (
	"fmt"

	"golang.org/x/sys/windows"

	"toastcall/internal/identity"
)

func mutexName(id identity.Identity) string {
	return `Local\` + id.Normalized() + ".instance"
}

// instanceLock is a named mutex. The mutex object exists while any handle
// to it is open, so creating it first is what owning the instance means.
type instanceLock struct {
	h windows.Handle
}

// tryLockInstance takes the instance lock without blocking. It returns
// ErrAlreadyRunning while another process holds it.
func tryLockInstance(id identity.Identity, _ string) (*instanceLock, error) {
	name, err := windows.UTF16PtrFromString(mutexName(id))
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateMutex(nil, false, name)
	if err == windows.ERROR_ALREADY_EXISTS {
		if h != 0 {
			windows.CloseHandle(h)
		}
		return nil, ErrAlreadyRunning
	}
	if h == 0 {
		return nil, fmt.Errorf("lifecycle: create mutex %s: %w", mutexName(id), err)
	}
	return &instanceLock{h: h}, nil
}

func (l *instanceLock) unlock() {
	windows.CloseHandle(l.h)
}
