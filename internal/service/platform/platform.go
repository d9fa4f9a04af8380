package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrUnsupportedOS indicates the operating system has no build or install procedure.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// ErrWorkInProgress indicates the operating system is planned but not implemented yet.
var ErrWorkInProgress = errors.New("support is work in progress, check for an update at a later time")

const (
	linuxOS   = "linux"
	windowsOS = "windows"

	windowsProgramFiles = `C:\Program Files`
)

// Current returns the running operating system name.
func Current() string {
	return runtime.GOOS
}

// Require returns nil when goos has a build and install procedure.
func Require(goos string) error {
	osName := strings.ToLower(goos)

	switch {
	case strings.Contains(osName, linuxOS):
		return nil
	case strings.Contains(osName, windowsOS):
		return fmt.Errorf("windows: %w", ErrWorkInProgress)
	default:
		return fmt.Errorf("the platform you are running is not compatible: %s: %w", goos, ErrUnsupportedOS)
	}
}

// DefaultInstallDir returns the install directory offered when the operator keeps the default.
// Linux installs under installRoot by target; Windows under Program Files by display name.
func DefaultInstallDir(goos, installRoot, target, name string) string {
	if strings.Contains(strings.ToLower(goos), windowsOS) {
		return windowsProgramFiles + `\` + name
	}

	return filepath.Join(installRoot, target)
}

// ExecutableExtension returns ".exe" on Windows and "" elsewhere.
func ExecutableExtension(goos string) string {
	if strings.Contains(strings.ToLower(goos), windowsOS) {
		return ".exe"
	}

	return ""
}
