package builder

import (
	"strings"
)

// ParseLddOutput returns the resolved paths of the libraries listed by ldd
// whose line contains one of patterns. Only lines of the form
// "name => /path (0x...)" are considered; unresolved and virtual entries are skipped.
func ParseLddOutput(output string, patterns []string) []string {
	var (
		libraries []string
		seen      = make(map[string]struct{})
	)

	for _, line := range strings.Split(output, "\n") {
		_, resolved, ok := strings.Cut(line, " => ")
		if !ok || !containsAny(line, patterns) {
			continue
		}

		path, _, ok := strings.Cut(resolved, " (0x")
		if !ok {
			continue
		}

		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		if _, dup := seen[path]; dup {
			continue
		}

		seen[path] = struct{}{}
		libraries = append(libraries, path)
	}

	return libraries
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}

	return false
}
