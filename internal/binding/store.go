package binding

import (
	"strings"
	"sync"
)

// Store is the key/value view of the registry the binder needs.
// Paths use '\' separators and are relative to the current user's hive.
// The empty value name addresses a key's default value.
type Store interface {
	// KeyExists reports whether path exists.
	KeyExists(path string) (bool, error)
	// GetString reads a string value. ok is false when the key or value is missing.
	GetString(path, name string) (value string, ok bool, err error)
	// SetString creates path if needed and writes a string value.
	SetString(path, name, value string) error
	// DeleteTree removes path and everything below it. Missing keys are not an error.
	DeleteTree(path string) error
}

// MemoryStore is an in-process Store. Paths are case-insensitive, like the
// registry's.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]map[string]string)}
}

func memKey(path string) string {
	return strings.ToLower(strings.Trim(path, `\`))
}

func (m *MemoryStore) KeyExists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[memKey(path)]
	return ok, nil
}

func (m *MemoryStore) GetString(path, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.keys[memKey(path)]
	if !ok {
		return "", false, nil
	}
	v, ok := vals[strings.ToLower(name)]
	return v, ok, nil
}

func (m *MemoryStore) SetString(path, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Creating a key creates its parents, as RegCreateKeyEx does.
	parts := strings.Split(memKey(path), `\`)
	for i := range parts {
		k := strings.Join(parts[:i+1], `\`)
		if _, ok := m.keys[k]; !ok {
			m.keys[k] = make(map[string]string)
		}
	}
	m.keys[memKey(path)][strings.ToLower(name)] = value
	return nil
}

func (m *MemoryStore) DeleteTree(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := memKey(path)
	for k := range m.keys {
		if k == root || strings.HasPrefix(k, root+`\`) {
			delete(m.keys, k)
		}
	}
	return nil
}
