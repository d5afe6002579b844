//go:build !windows

package toast

func push(*Notification) error { return ErrUnsupported }

func clearHistory(string) error { return ErrUnsupported }
