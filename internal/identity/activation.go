package identity

import (
	"fmt"
	"strings"
)

// Activation describes how the current process was launched.
type Activation struct {
	// Protocol is true when the shell relaunched the process through the
	// registered URI scheme.
	Protocol bool
	// Callback is the requested callback name. Empty unless Protocol.
	Callback string
}

// Detect inspects the process arguments (program name excluded) and
// reports whether the first one is an action URL for id.
//
// The scheme is matched case-insensitively because the shell may lower-case
// it. A trailing '/' some launchers append is dropped. A callback name that
// is empty or itself contains the separator yields ErrMalformedActivation.
func Detect(id Identity, args []string) (Activation, error) {
	if len(args) == 0 {
		return Activation{}, nil
	}
	arg := args[0]
	prefix := id.normalized + Separator
	i := indexFold(arg, prefix)
	if i < 0 {
		return Activation{}, nil
	}

	name := strings.TrimSuffix(arg[i+len(prefix):], "/")
	if err := ValidateName(name); err != nil {
		return Activation{Protocol: true}, fmt.Errorf("%w: %q: %v", ErrMalformedActivation, arg, err)
	}
	return Activation{Protocol: true, Callback: name}, nil
}

// indexFold is strings.Index with ASCII case folding.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
