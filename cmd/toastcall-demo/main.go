// Command toastcall-demo shows a toast whose buttons call back into the
// running process.
package main

import (
	"toastcall/internal/core"
)

// Build info, injected via ldflags at compile time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		core.Log.Fatalf("Demo", "%v", err)
	}
}
