package integration

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/app-installer/internal/prompt"
	"github.com/oshokin/app-installer/internal/sfx"
	"github.com/oshokin/app-installer/internal/service/builder"
	"github.com/oshokin/app-installer/internal/service/extractor"
	"github.com/oshokin/app-installer/internal/service/packager"
)

// Mode markers baked into cmd/app-installer.
const (
	installerModeMarker    = "app-installer:run-mode=interactive"
	installerExtractMarker = "app-installer:run-mode=selfextract"
)

// buildInstaller compiles cmd/app-installer into dir.
func buildInstaller(t *testing.T, dir string) string {
	t.Helper()

	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}

	output := filepath.Join(dir, "app-installer")

	cmd := exec.CommandContext(context.Background(), goTool, "build", "-o", output, "./cmd/app-installer")
	cmd.Dir = filepath.Join("..", "..")

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	return output
}

// TestRelease_PackCompiledInstaller packs the real installer program and runs the result.
func TestRelease_PackCompiledInstaller(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles cmd/app-installer")
	}

	t.Parallel()

	ctx := context.Background()
	w := newWorkspace(t)
	stubPath := buildInstaller(t, t.TempDir())

	stub, err := os.ReadFile(stubPath)
	require.NoError(t, err)
	require.Equal(t, 1, bytes.Count(stub, []byte(installerModeMarker)))
	require.NotContains(t, string(stub), "\n"+sfx.Sentinel+"\n")

	err = builder.Run(ctx, &builder.Options{
		ConfigPath: w.configPath,
		ProjectDir: w.projectDir,
		OS:         "linux",
		Runner:     w.runner(),
		Prompter:   prompt.Defaults{},
	})
	require.NoError(t, err)

	installerPath := filepath.Join(w.root, "Integration-4.5.6.run")

	err = packager.Run(ctx, &packager.Options{
		ConfigPath:    w.configPath,
		StagedDir:     w.stagedDir(),
		OutputPath:    installerPath,
		StubPath:      stubPath,
		ModeMarker:    installerModeMarker,
		ExtractMarker: installerExtractMarker,
	})
	require.NoError(t, err)

	packed, err := os.ReadFile(installerPath)
	require.NoError(t, err)
	require.NotContains(t, string(packed), installerModeMarker)
	require.Equal(t, 1, bytes.Count(packed, []byte(installerExtractMarker)))

	// The appended payload must not stop the program from starting.
	out, err := exec.CommandContext(ctx, installerPath, "version").CombinedOutput()
	require.NoError(t, err, string(out))
	require.Contains(t, string(out), "app-installer")

	systemRunner := w.runner()

	err = extractor.Run(ctx, &extractor.Options{
		ConfigPath: w.configPath,
		Executable: installerPath,
		WorkDir:    t.TempDir(),
		OS:         "linux",
		Runner:     systemRunner,
		Prompter:   prompt.Defaults{},
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(w.cfg.InstallRoot, testTarget, testTarget))
}
