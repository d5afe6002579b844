package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"toastcall/internal/identity"
)

var ErrAlreadyRunning = errors.New("lifecycle: another instance is listening")

// MarkerPath returns the liveness marker for id inside dir.
func MarkerPath(dir string, id identity.Identity) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, id.Normalized()+".pid")
}

// ReadMarker returns the pid recorded in the marker at path.
func ReadMarker(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("lifecycle: marker %s: %w", path, err)
	}
	return pid, nil
}

func markerExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func removeMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("lifecycle: remove marker %s: %w", path, err)
	}
	return nil
}

// writeMarker records our pid. Callers hold the instance lock.
func writeMarker(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return fmt.Errorf("lifecycle: write marker %s: %w", path, err)
	}
	return nil
}
