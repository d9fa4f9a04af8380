package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and bounds for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultStagingDir, cfg.StagingDir)
	require.Equal(t, DefaultInstallRoot, cfg.InstallRoot)
	require.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	require.Equal(t, DefaultBundleLibraries(), cfg.BundleLibraries)

	// Chunk size out of range.
	cfg = &Config{ChunkSize: MaxChunkSize + 1}
	require.ErrorIs(t, Validate(cfg), errInvalidChunkSize)

	cfg = &Config{ChunkSize: -1}
	require.ErrorIs(t, Validate(cfg), errInvalidChunkSize)

	// Project paths must stay relative.
	cfg = &Config{StagingDir: "/tmp/app_dir"}
	require.ErrorIs(t, Validate(cfg), errAbsolutePath)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		ToolkitBinDir:   "/opt/qt/bin",
		InstallRoot:     "/srv",
		BundleLibraries: []string{"libQt"},
		ChunkSize:       1024,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ToolkitBinDir, loaded.ToolkitBinDir)
	require.Equal(t, cfg.InstallRoot, loaded.InstallRoot)
	require.Equal(t, cfg.BundleLibraries, loaded.BundleLibraries)
	require.Equal(t, 1024, loaded.ChunkSize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoadMissingFileUsesDefaults ensures the settings file is optional.
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultServiceDir, cfg.ServiceDir)
	require.Equal(t, DefaultHeaderPath, cfg.HeaderPath)
}

// TestApplyEnv verifies environment overrides win over file values.
func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvToolkitBinDir, "/env/qt/bin")
	t.Setenv(EnvChunkSize, "2048")

	cfg := &Config{ToolkitBinDir: "/file/qt/bin", ChunkSize: 10}
	ApplyEnv(cfg)

	require.Equal(t, "/env/qt/bin", cfg.ToolkitBinDir)
	require.Equal(t, 2048, cfg.ChunkSize)
	require.Empty(t, cfg.InstallRoot)
}
