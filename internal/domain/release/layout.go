package release

// Staged tree layout shared by the builder and the installer.
const (
	// LinuxDir holds everything installed on Linux.
	LinuxDir = "linux"
	// LibDir holds bundled shared libraries.
	LibDir = "lib"
	// SQLDriversDir holds the toolkit SQL driver plugins.
	SQLDriversDir = "sqldrivers"
	// UninstallScript removes an installation.
	UninstallScript = "uninstall.sh"
	// InstallDirPlaceholder is replaced by the chosen install directory at install time.
	InstallDirPlaceholder = "$install_dir"
)

// LauncherScript returns the launcher script name for target.
func LauncherScript(target string) string {
	return target + ".sh"
}

// ServiceUnit returns the systemd unit name for target.
func ServiceUnit(target string) string {
	return target + ".service"
}
