package release

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Manifest identifies a staged build.
type Manifest struct {
	// Target is the executable, service and system account name.
	Target string `yaml:"target"`
	// Version is the application version string.
	Version string `yaml:"version"`
	// Name is the human-readable application name.
	Name string `yaml:"name"`
	// Files maps slash-separated paths relative to the staged tree to base64-encoded
	// SHA-512 checksums.
	Files map[string]string `yaml:"files,omitempty"`
	// BuiltAt is when the builder finished staging.
	BuiltAt time.Time `yaml:"built_at,omitempty"`
}

var (
	// ErrFieldRequired is returned when a mandatory manifest field is empty.
	ErrFieldRequired = errors.New("manifest field is required")
	// ErrFieldMultiline is returned when a manifest field spans several lines.
	ErrFieldMultiline = errors.New("manifest field must be a single line")
	// ErrInvalidTarget is returned when the target cannot be used as a file name.
	ErrInvalidTarget = errors.New("manifest target must be a plain file name")
)

// New returns a manifest for the given identity.
func New(target, version, name string) *Manifest {
	return &Manifest{
		Target:  target,
		Version: version,
		Name:    name,
		Files:   make(map[string]string),
	}
}

// Validate checks that the identity fields are present and usable.
func (m *Manifest) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"target", m.Target},
		{"version", m.Version},
		{"name", m.Name},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s: %w", f.name, ErrFieldRequired)
		}

		if strings.ContainsAny(f.value, "\r\n") {
			return fmt.Errorf("%s: %w", f.name, ErrFieldMultiline)
		}
	}

	if strings.ContainsAny(m.Target, `/\`) || m.Target == "." || m.Target == ".." {
		return fmt.Errorf("%q: %w", m.Target, ErrInvalidTarget)
	}

	return nil
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}

	cloned := *m
	cloned.Files = maps.Clone(m.Files)

	return &cloned
}

// String renders the manifest identity for logs.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s %s (%s)", m.Name, m.Version, m.Target)
}
