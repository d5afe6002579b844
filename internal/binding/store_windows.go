//go:build windows

package binding

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// registryStore implements Store on HKEY_CURRENT_USER.
type registryStore struct {
	root registry.Key
}

// NewSystemStore returns the Store backed by the current user's registry hive.
func NewSystemStore() Store {
	return &registryStore{root: registry.CURRENT_USER}
}

func (s *registryStore) KeyExists(path string) (bool, error) {
	k, err := registry.OpenKey(s.root, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	k.Close()
	return true, nil
}

func (s *registryStore) GetString(path, name string) (string, bool, error) {
	k, err := registry.OpenKey(s.root, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("open %s: %w", path, err)
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s\\%s: %w", path, name, err)
	}
	return v, true, nil
}

func (s *registryStore) SetString(path, name, value string) error {
	k, _, err := registry.CreateKey(s.root, path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer k.Close()
	if err := k.SetStringValue(name, value); err != nil {
		return fmt.Errorf("write %s\\%s: %w", path, name, err)
	}
	return nil
}

// DeleteTree removes sub-keys depth first; RegDeleteKey refuses keys that
// still have children.
func (s *registryStore) DeleteTree(path string) error {
	k, err := registry.OpenKey(s.root, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	names, err := k.ReadSubKeyNames(-1)
	k.Close()
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", path, err)
	}
	for _, n := range names {
		if err := s.DeleteTree(path + `\` + n); err != nil {
			return err
		}
	}
	if err := registry.DeleteKey(s.root, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
