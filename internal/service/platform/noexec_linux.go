//go:build linux

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// IsNoExec reports whether path lives on a file system mounted with noexec.
// Tools such as ldd cannot inspect binaries stored there.
func IsNoExec(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, fmt.Errorf("statfs %s: %w", path, err)
	}

	return stat.Flags&unix.ST_NOEXEC != 0, nil
}
