package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	t.Parallel()

	require.NoError(t, Require("linux"))
	require.ErrorIs(t, Require("windows"), ErrWorkInProgress)
	require.ErrorIs(t, Require("plan9"), ErrUnsupportedOS)
	require.ErrorContains(t, Require("plan9"), "plan9")
}

func TestDefaultInstallDir(t *testing.T) {
	t.Parallel()

	require.Equal(t, filepath.Join("/opt", "demoapp"), DefaultInstallDir("linux", "/opt", "demoapp", "Demo App"))
	require.Equal(t, `C:\Program Files\Demo App`, DefaultInstallDir("windows", "/opt", "demoapp", "Demo App"))
}

func TestExecutableExtension(t *testing.T) {
	t.Parallel()

	require.Equal(t, ".exe", ExecutableExtension("windows"))
	require.Empty(t, ExecutableExtension("linux"))
}

func TestIsNoExec(t *testing.T) {
	t.Parallel()

	_, err := IsNoExec(t.TempDir())
	require.NoError(t, err)

	_, err = IsNoExec(filepath.Join(t.TempDir(), "missing"))
	if Current() == "linux" {
		require.Error(t, err)
	}
}
