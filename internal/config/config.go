package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the paths and tunables shared by the builder and the installer.
type Config struct {
	// ToolkitBinDir is the GUI toolkit bin directory holding qmake and qtpaths.
	ToolkitBinDir string `yaml:"toolkit_bin_dir,omitempty"`
	// HeaderPath is the project header declaring APP_TARGET, APP_VER and APP_NAME,
	// relative to the project directory.
	HeaderPath string `yaml:"header_path"`
	// BuildDir is where make leaves the executable, relative to the project directory.
	BuildDir string `yaml:"build_dir"`
	// StagingDir is the staged tree produced by the builder, relative to the project directory.
	StagingDir string `yaml:"staging_dir"`
	// InstallRoot is the parent of default install directories on Linux.
	InstallRoot string `yaml:"install_root"`
	// DataRoot is the parent of per-application data directories.
	DataRoot string `yaml:"data_root"`
	// ServiceDir receives the generated systemd unit.
	ServiceDir string `yaml:"service_dir"`
	// BinLinkDir receives the launcher symlink.
	BinLinkDir string `yaml:"bin_link_dir"`
	// BundleLibraries lists substrings selecting which ldd dependencies are bundled.
	BundleLibraries []string `yaml:"bundle_libraries"`
	// ChunkSize is the number of raw payload bytes per installer line.
	ChunkSize int `yaml:"chunk_size"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "app-installer-settings.yaml"

	// DefaultHeaderPath is the project header holding the application identity.
	DefaultHeaderPath = "src/db.h"

	// DefaultBuildDir is where the native build leaves its executable.
	DefaultBuildDir = "build"

	// DefaultStagingDir is the staged tree directory name.
	DefaultStagingDir = "app_dir"

	// DefaultInstallRoot is the Linux parent directory for installations.
	DefaultInstallRoot = "/opt"

	// DefaultDataRoot is the Linux parent directory for application data.
	DefaultDataRoot = "/var/opt"

	// DefaultServiceDir is the systemd unit directory.
	DefaultServiceDir = "/etc/systemd/system"

	// DefaultBinLinkDir is where the launcher symlink is created.
	DefaultBinLinkDir = "/usr/bin"

	// DefaultChunkSize is the raw payload size per installer line.
	DefaultChunkSize = 4_000_000

	// MaxChunkSize bounds a single payload line.
	MaxChunkSize = 64 << 20

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Environment variables overriding the settings file.
const (
	EnvToolkitBinDir = "APP_INSTALLER_QT_DIR"
	EnvInstallRoot   = "APP_INSTALLER_INSTALL_ROOT"
	EnvChunkSize     = "APP_INSTALLER_CHUNK_SIZE"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidChunkSize is returned when the chunk size is out of bounds.
	errInvalidChunkSize = errors.New("chunk size out of range")
	// errAbsolutePath is returned when a project-relative path is absolute.
	errAbsolutePath = errors.New("path must be relative to the project directory")
)

// DefaultBundleLibraries returns the library name fragments bundled by default.
func DefaultBundleLibraries() []string {
	return []string{"libQt", "libicu", "libssl", "libcrypto"}
}

// New returns a Config populated with defaults.
func New() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	ApplyEnv(&cfg)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings with values from the environment.
func ApplyEnv(cfg *Config) {
	cfg.ToolkitBinDir = env.Str(EnvToolkitBinDir, cfg.ToolkitBinDir)
	cfg.InstallRoot = env.Str(EnvInstallRoot, cfg.InstallRoot)
	cfg.ChunkSize = env.Int(EnvChunkSize, cfg.ChunkSize)
}

// Validate fills defaults and checks the provided settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefault(&cfg.HeaderPath, DefaultHeaderPath)
	setDefault(&cfg.BuildDir, DefaultBuildDir)
	setDefault(&cfg.StagingDir, DefaultStagingDir)
	setDefault(&cfg.InstallRoot, DefaultInstallRoot)
	setDefault(&cfg.DataRoot, DefaultDataRoot)
	setDefault(&cfg.ServiceDir, DefaultServiceDir)
	setDefault(&cfg.BinLinkDir, DefaultBinLinkDir)

	if len(cfg.BundleLibraries) == 0 {
		cfg.BundleLibraries = DefaultBundleLibraries()
	}

	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if cfg.ChunkSize < 0 || cfg.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: %d", errInvalidChunkSize, cfg.ChunkSize)
	}

	for _, p := range []string{cfg.HeaderPath, cfg.BuildDir, cfg.StagingDir} {
		if filepath.IsAbs(p) {
			return fmt.Errorf("%s: %w", p, errAbsolutePath)
		}
	}

	return nil
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}
