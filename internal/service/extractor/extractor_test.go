package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/prompt"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/common/commontest"
	"github.com/oshokin/app-installer/internal/sfx"
)

const testTarget = "sfxextractdemo"

// packInstaller stages a minimal tree, packs it behind a text stub and returns
// the installer path and the settings file pointing at fake system directories.
func packInstaller(t *testing.T) (string, string, *config.Config) {
	t.Helper()

	root := t.TempDir()
	staged := filepath.Join(root, "app_dir")
	linuxDir := filepath.Join(staged, release.LinuxDir)

	files := map[string]string{
		testTarget:                 "ELF",
		testTarget + ".sh":         "exec $install_dir/" + testTarget + "\n",
		testTarget + ".service":    "[Unit]\n",
		release.UninstallScript:    "rm -rv $install_dir\n",
		"lib/libQt5Core.so.5":      "qt",
		"sqldrivers/libqsqlite.so": "sqlite",
	}

	for name, contents := range files {
		path := filepath.Join(linuxDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o755))
	}

	m := release.New(testTarget, "3.0.0", "Extract Demo")
	require.NoError(t, repository.NewFileRepository(staged).Save(context.Background(), m))

	installerPath := filepath.Join(root, "demo.run")
	out, err := os.Create(installerPath)
	require.NoError(t, err)

	_, err = sfx.Pack(context.Background(), &sfx.PackOptions{
		StagedDir:     staged,
		Stub:          strings.NewReader("#!/bin/false\nmode=install\n"),
		Output:        out,
		ModeMarker:    "mode=install",
		ExtractMarker: "mode=extract",
		ChunkSize:     64,
	})
	require.NoError(t, err)
	require.NoError(t, out.Close())

	cfg := config.New()
	cfg.InstallRoot = filepath.Join(root, "opt")
	cfg.DataRoot = filepath.Join(root, "var")
	cfg.ServiceDir = filepath.Join(root, "systemd")
	cfg.BinLinkDir = filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(cfg.ServiceDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.BinLinkDir, 0o755))

	configPath := filepath.Join(root, "settings.yaml")
	require.NoError(t, config.Save(configPath, cfg))

	return installerPath, configPath, cfg
}

// TestRun_InstallsPayload extracts, installs and removes the temporary copy.
func TestRun_InstallsPayload(t *testing.T) {
	t.Parallel()

	installerPath, configPath, cfg := packInstaller(t)
	workDir := t.TempDir()
	runner := new(commontest.Runner)

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		Executable: installerPath,
		WorkDir:    workDir,
		OS:         "linux",
		Runner:     runner,
		Prompter:   prompt.Defaults{},
	})
	require.NoError(t, err)

	installDir := filepath.Join(cfg.InstallRoot, testTarget)
	require.FileExists(t, filepath.Join(installDir, testTarget))
	require.FileExists(t, filepath.Join(installDir, release.SQLDriversDir, "libqsqlite.so"))
	require.Contains(t, runner.Commands(), "systemctl enable "+testTarget)

	installed, err := repository.NewFileRepository(installDir).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "3.0.0", installed.Version)

	leftovers, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

// TestRun_NoPayload fails without extracting when the program carries no sentinel.
func TestRun_NoPayload(t *testing.T) {
	t.Parallel()

	executable := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(executable, []byte("#!/bin/false\n"), 0o755))

	workDir := t.TempDir()
	runner := new(commontest.Runner)

	err := Run(context.Background(), &Options{
		Executable: executable,
		WorkDir:    workDir,
		OS:         "linux",
		Runner:     runner,
	})
	require.ErrorIs(t, err, sfx.ErrSentinelNotFound)
	require.Empty(t, runner.Commands())

	leftovers, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

// TestFindStagedDir requires exactly one top-level directory.
func TestFindStagedDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := findStagedDir(dir)
	require.ErrorIs(t, err, errPayloadLayout)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "app_dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.zip"), nil, 0o644))

	got, err := findStagedDir(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "app_dir"), got)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "other"), 0o755))

	_, err = findStagedDir(dir)
	require.ErrorIs(t, err, errPayloadLayout)
}
