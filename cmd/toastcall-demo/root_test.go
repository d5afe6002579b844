package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "toastcall-demo dev (commit=unknown, built=unknown)\n", out.String())
}

func TestRootRejectsExtraArgs(t *testing.T) {
	rootCmd.SetArgs([]string{"My-App:ping", "extra"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.Error(t, rootCmd.Execute())
}

func TestResolveRelativeToExe(t *testing.T) {
	abs := t.TempDir()
	require.Equal(t, abs, resolveRelativeToExe(abs))
	require.NotEqual(t, "toastcall.yaml", resolveRelativeToExe("toastcall.yaml"))
}
