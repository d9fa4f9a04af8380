package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/app-installer/internal/domain/release"
)

const (
	// Filename is the tagged manifest stored at the staged tree root.
	Filename = "app-info.yaml"
	// LegacyFilename is the positional manifest: target, version, name.
	LegacyFilename = "info.txt"

	// fileMode is used for manifests since they travel inside installers.
	fileMode os.FileMode = 0o644

	legacyFieldCount = 3
)

// Repository defines persistence operations for the manifest of a staged tree.
type Repository interface {
	Load(ctx context.Context) (*release.Manifest, error)
	Save(ctx context.Context, m *release.Manifest) error
}

// FileRepository reads and writes the manifest of one staged tree.
type FileRepository struct {
	// dir is the staged tree root.
	dir string
}

var (
	// ErrNotFound is returned when the staged tree carries no manifest.
	ErrNotFound = errors.New("manifest not found")
	// ErrLegacyFormat is returned when info.txt does not hold exactly three lines.
	ErrLegacyFormat = errors.New("legacy manifest must hold exactly three lines")
)

// NewFileRepository creates a repository for the staged tree rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{
		dir: filepath.Clean(dir),
	}
}

// Path returns the location of the tagged manifest.
func (r *FileRepository) Path() string {
	return filepath.Join(r.dir, Filename)
}

// Load reads the tagged manifest, or the legacy one when the tagged file is absent.
func (r *FileRepository) Load(_ context.Context) (*release.Manifest, error) {
	contents, err := os.ReadFile(r.Path())
	if errors.Is(err, os.ErrNotExist) {
		return r.loadLegacy()
	}

	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m release.Manifest
	if err = yaml.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if err = m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.Path(), err)
	}

	return &m, nil
}

// Save validates and writes the tagged manifest.
func (r *FileRepository) Save(_ context.Context, m *release.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err = os.WriteFile(r.Path(), data, fileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

func (r *FileRepository) loadLegacy() (*release.Manifest, error) {
	path := filepath.Join(r.dir, LegacyFilename)

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.dir, ErrNotFound)
		}

		return nil, fmt.Errorf("read legacy manifest: %w", err)
	}

	m, err := ParseLegacy(string(contents))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// ParseLegacy decodes the positional format: line 1 target, line 2 version, line 3 name.
func ParseLegacy(text string) (*release.Manifest, error) {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	lines := strings.Split(text, "\n")
	if len(lines) != legacyFieldCount {
		return nil, fmt.Errorf("%w: got %d", ErrLegacyFormat, len(lines))
	}

	m := release.New(lines[0], lines[1], lines[2])
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}
