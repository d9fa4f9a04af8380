//go:build !linux

package platform

// IsNoExec always reports false where mount flags are not inspected.
func IsNoExec(string) (bool, error) {
	return false, nil
}
