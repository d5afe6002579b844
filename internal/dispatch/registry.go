package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"toastcall/internal/identity"
)

var (
	ErrNotRegistered = errors.New("dispatch: callback not registered")
	ErrNilHandler    = errors.New("dispatch: nil handler")
)

// Handler is a registered callback.
type Handler func()

// Callback is the handle returned by registration. It is the only way to
// obtain an action URL for a handler, so holding one proves the name resolves.
type Callback struct {
	Name       string
	URL        string
	MainThread bool
}

type entry struct {
	handler    Handler
	mainThread bool
}

// RegisterOption adjusts a registration.
type RegisterOption func(*entry)

// MainThread defers the handler to the host's Update poll instead of running
// it on the listener goroutine.
func MainThread() RegisterOption {
	return func(e *entry) { e.mainThread = true }
}

// Registry maps symbolic names to handlers for one application identity.
// It is safe for concurrent use; registering while the listener runs is
// supported. Names are never removed; re-registering a name replaces it.
type Registry struct {
	id      identity.Identity
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry for id.
func NewRegistry(id identity.Identity) *Registry {
	return &Registry{
		id:      id,
		entries: make(map[string]entry),
	}
}

// Identity returns the identity action URLs are built from.
func (r *Registry) Identity() identity.Identity { return r.id }

// Register stores h under name and returns its handle.
func (r *Registry) Register(name string, h Handler, opts ...RegisterOption) (Callback, error) {
	if h == nil {
		return Callback{}, ErrNilHandler
	}
	url, err := r.id.ActionURL(name)
	if err != nil {
		return Callback{}, err
	}
	e := entry{handler: h}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	r.entries[name] = e
	r.mu.Unlock()

	return Callback{Name: name, URL: url, MainThread: e.mainThread}, nil
}

// RegisterFunc registers h under its declared function name. Anonymous
// functions have generated names ("func1"), so give those an explicit name
// via Register.
func (r *Registry) RegisterFunc(h Handler, opts ...RegisterOption) (Callback, error) {
	if h == nil {
		return Callback{}, ErrNilHandler
	}
	return r.Register(FuncName(h), h, opts...)
}

// FuncName returns the unqualified declared name of fn.
func FuncName(fn any) string {
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	name := full[strings.LastIndex(full, ".")+1:]
	// Method values carry a "-fm" suffix.
	return strings.TrimSuffix(name, "-fm")
}

// URL returns the action URL of a registered name.
func (r *Registry) URL(name string) (string, error) {
	r.mu.RLock()
	_, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return r.id.ActionURL(name)
}

// lookup resolves name.
func (r *Registry) lookup(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Invoke runs the handler registered under name on the calling goroutine,
// regardless of its MainThread flag.
func (r *Registry) Invoke(name string) error {
	e, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	e.handler()
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
