// Package binding associates an application identity with a custom URI
// scheme, so that the shell relaunches the application's executable with the
// clicked action URL as its argument.
package binding

import (
	"errors"
	"fmt"
	"strings"

	"toastcall/internal/core"
	"toastcall/internal/identity"
)

const (
	classesRoot       = `SOFTWARE\Classes`
	commandSubKey     = `shell\open\command`
	urlProtocolValue  = "URL Protocol"
	defaultValue      = ""
	activationArgSlot = "%1"
)

var (
	ErrNoExecutable       = errors.New("binding: executable path is empty")
	ErrForeignAssociation = errors.New("binding: existing association was not created by a protocol binder")
)

// Command is the invocation the shell runs on activation.
type Command struct {
	Executable string
	// Script is an optional argument placed before the activation URL
	// (an interpreter's script path, for example).
	Script string
}

// String renders the command line stored in the registry:
// "<exe>" "<script>" %1, or "<exe>" %1 without a script.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(`"` + c.Executable + `" `)
	if c.Script != "" {
		b.WriteString(`"` + c.Script + `" `)
	}
	b.WriteString(activationArgSlot)
	return b.String()
}

// Options controls Register.
type Options struct {
	// Override rewrites an existing association after checking that it has
	// the shape this package writes.
	Override bool
}

// Result reports what Register did.
type Result int

const (
	ResultCreated Result = iota
	ResultSkipped
	ResultReplaced
)

func (r Result) String() string {
	switch r {
	case ResultCreated:
		return "created"
	case ResultSkipped:
		return "skipped"
	case ResultReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Binder writes protocol associations into a Store.
type Binder struct {
	store Store
}

// New creates a Binder over store.
func New(store Store) *Binder {
	return &Binder{store: store}
}

// KeyPath returns the association key for id, relative to the user hive.
func KeyPath(id identity.Identity) string {
	return classesRoot + `\` + id.Normalized()
}

func commandPath(id identity.Identity) string {
	return KeyPath(id) + `\` + commandSubKey
}

// Register associates id's scheme with cmd. An existing association is left
// alone unless opts.Override is set; an override refuses to clobber an
// association that does not look like a protocol handler.
func (b *Binder) Register(id identity.Identity, cmd Command, opts Options) (Result, error) {
	if cmd.Executable == "" {
		return 0, ErrNoExecutable
	}
	key := KeyPath(id)

	exists, err := b.store.KeyExists(key)
	if err != nil {
		return 0, fmt.Errorf("binding: check %s: %w", key, err)
	}
	if exists && !opts.Override {
		core.Log.Debugf("Binding", "Association %s already present, leaving it", key)
		return ResultSkipped, nil
	}
	if exists {
		if err := b.validate(id); err != nil {
			return 0, err
		}
	}

	if err := b.write(id, cmd); err != nil {
		return 0, err
	}
	if exists {
		core.Log.Infof("Binding", "Replaced association %s -> %s", key, cmd)
		return ResultReplaced, nil
	}
	core.Log.Infof("Binding", "Registered association %s -> %s", key, cmd)
	return ResultCreated, nil
}

// Lookup returns the command line currently associated with id.
func (b *Binder) Lookup(id identity.Identity) (string, bool, error) {
	v, ok, err := b.store.GetString(commandPath(id), defaultValue)
	if err != nil {
		return "", false, fmt.Errorf("binding: lookup %s: %w", KeyPath(id), err)
	}
	return v, ok, nil
}

// Unregister removes id's association. A missing association is not an
// error; a foreign one is left in place.
func (b *Binder) Unregister(id identity.Identity) error {
	key := KeyPath(id)
	exists, err := b.store.KeyExists(key)
	if err != nil {
		return fmt.Errorf("binding: check %s: %w", key, err)
	}
	if !exists {
		return nil
	}
	if err := b.validate(id); err != nil {
		return err
	}
	if err := b.store.DeleteTree(key); err != nil {
		return fmt.Errorf("binding: delete %s: %w", key, err)
	}
	core.Log.Infof("Binding", "Removed association %s", key)
	return nil
}

// validate checks the structural markers of a URL protocol handler.
func (b *Binder) validate(id identity.Identity) error {
	key := KeyPath(id)
	_, ok, err := b.store.GetString(key, urlProtocolValue)
	if err != nil {
		return fmt.Errorf("binding: read %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s has no %q value", ErrForeignAssociation, key, urlProtocolValue)
	}
	cmdline, ok, err := b.store.GetString(commandPath(id), defaultValue)
	if err != nil {
		return fmt.Errorf("binding: read %s: %w", commandPath(id), err)
	}
	if !ok || strings.TrimSpace(cmdline) == "" {
		return fmt.Errorf("%w: %s has no open command", ErrForeignAssociation, key)
	}
	return nil
}

func (b *Binder) write(id identity.Identity, cmd Command) error {
	key := KeyPath(id)
	writes := []struct{ path, name, value string }{
		{key, defaultValue, "URL:" + id.Normalized()},
		{key, urlProtocolValue, ""},
		{commandPath(id), defaultValue, cmd.String()},
	}
	for _, w := range writes {
		if err := b.store.SetString(w.path, w.name, w.value); err != nil {
			return fmt.Errorf("binding: register %s: %w", key, err)
		}
	}
	return nil
}
