// Package identity derives everything that must agree between the process
// that registers a protocol handler and any process the shell relaunches:
// the normalized application name, action URLs and activation parsing.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Separator joins the normalized identity and the callback name in an action URL.
const Separator = ":"

var (
	ErrEmptyIdentity       = errors.New("identity: application id is empty")
	ErrInvalidName         = errors.New("identity: invalid callback name")
	ErrMalformedActivation = errors.New("identity: malformed activation argument")
)

// Identity is an application name together with its normalized form.
type Identity struct {
	name       string
	normalized string
}

// New builds an Identity from the user-visible application name.
func New(name string) (Identity, error) {
	if strings.TrimSpace(name) == "" {
		return Identity{}, ErrEmptyIdentity
	}
	return Identity{name: name, normalized: Normalize(name)}, nil
}

// Normalize replaces every space with '-'. The result is used as registry
// key, URI scheme and channel name.
func Normalize(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}

// Name returns the user-visible application name.
func (id Identity) Name() string { return id.name }

// Normalized returns the normalized form of the application name.
func (id Identity) Normalized() string { return id.normalized }

func (id Identity) String() string { return id.name }

// ValidateName reports whether name can travel inside an action URL.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	if i := strings.IndexFunc(name, notNameRune); i >= 0 {
		return fmt.Errorf("%w: %q has illegal character at %d", ErrInvalidName, name, i)
	}
	return nil
}

// Callback names are restricted to characters that survive a trip through
// the shell and a URL unescaped.
func notNameRune(r rune) bool {
	switch {
	case r == '_' || r == '-' || r == '.':
		return false
	case r > unicode.MaxASCII:
		return true
	default:
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
}

// ActionURL returns "<normalized>:<name>".
func (id Identity) ActionURL(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return id.normalized + Separator + name, nil
}
