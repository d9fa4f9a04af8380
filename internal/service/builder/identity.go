package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/oshokin/app-installer/internal/domain/release"
)

//nolint:gochecknoglobals // Compiled once, read-only.
var (
	targetPattern  = regexp.MustCompile(`APP_TARGET\s+"(.*?)"`)
	versionPattern = regexp.MustCompile(`APP_VER\s+"(.*?)"`)
	namePattern    = regexp.MustCompile(`APP_NAME\s+"(.*?)"`)
)

var errIdentityMissing = errors.New("definition not found in project header")

// ReadIdentity extracts APP_TARGET, APP_VER and APP_NAME from a project header.
func ReadIdentity(headerPath string) (*release.Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(headerPath))
	if err != nil {
		return nil, fmt.Errorf("read project header: %w", err)
	}

	return ParseIdentity(string(contents))
}

// ParseIdentity extracts the application identity from header text.
func ParseIdentity(text string) (*release.Manifest, error) {
	definitions := []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"APP_TARGET", targetPattern},
		{"APP_VER", versionPattern},
		{"APP_NAME", namePattern},
	}

	values := make([]string, 0, len(definitions))

	for _, d := range definitions {
		match := d.pattern.FindStringSubmatch(text)
		if match == nil {
			return nil, fmt.Errorf("%s: %w", d.name, errIdentityMissing)
		}

		values = append(values, match[1])
	}

	m := release.New(values[0], values[1], values[2])
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}
