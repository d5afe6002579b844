//go:build !windows

package binding

// NewSystemStore returns an in-memory Store. Only the Windows shell performs
// protocol activation, so elsewhere the association lives for the process
// lifetime and nothing relaunches through it.
func NewSystemStore() Store {
	return NewMemoryStore()
}
