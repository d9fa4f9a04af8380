package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/prompt"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/common"
	"github.com/oshokin/app-installer/internal/service/installer"
	"github.com/oshokin/app-installer/internal/sfx"
)

// Options contains inputs for a self-extracting install.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// Executable is the packed installer; the running program when empty.
	Executable string
	// WorkDir receives the temporary extraction directory; the OS temp dir when empty.
	WorkDir string
	// InstallDir is passed to the installer.
	InstallDir string
	// OS overrides the target operating system.
	OS string
	// Runner executes the system tools.
	Runner common.Runner
	// Prompter asks the installer questions.
	Prompter prompt.Prompter
}

// errPayloadLayout is returned when the payload does not hold exactly one staged tree.
var errPayloadLayout = errors.New("payload must contain a single staged directory")

// Run unpacks the running installer and installs its payload.
// The temporary directory is removed whether the install succeeds or not.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "app-extractor")

	executable := opts.Executable
	if executable == "" {
		var err error

		if executable, err = os.Executable(); err != nil {
			return fmt.Errorf("locate installer: %w", err)
		}
	}

	tmp, err := os.MkdirTemp(opts.WorkDir, "app-installer-")
	if err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}

	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			logger.WarnKV(ctx, "Unable to remove extraction dir", "path", tmp, "error", rmErr)
		}
	}()

	stagedDir, err := unpack(ctx, executable, tmp)
	if err != nil {
		return err
	}

	manifest, err := repository.NewFileRepository(stagedDir).Load(ctx)
	if err != nil {
		return fmt.Errorf("load payload manifest: %w", err)
	}

	logger.InfoKV(ctx, "Payload extracted", "app", manifest.String())

	return installer.Run(ctx, &installer.Options{
		ConfigPath: opts.ConfigPath,
		StagedDir:  stagedDir,
		InstallDir: opts.InstallDir,
		Manifest:   manifest,
		OS:         opts.OS,
		Runner:     opts.Runner,
		Prompter:   opts.Prompter,
	})
}

// unpack extracts the payload of executable into dir and returns the staged tree inside it.
func unpack(ctx context.Context, executable, dir string) (string, error) {
	source, err := os.Open(filepath.Clean(executable))
	if err != nil {
		return "", fmt.Errorf("open installer: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	result, err := sfx.Unpack(ctx, &sfx.UnpackOptions{
		Source:  source,
		DestDir: dir,
		WorkDir: dir,
		Progress: func(done, _ int64) {
			logger.DebugKV(ctx, "Payload decoded", "bytes", done)
		},
	})
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", executable, err)
	}

	logger.DebugKV(ctx, "Unpacked payload", "files", len(result.Files), "payload_bytes", result.PayloadBytes)

	return findStagedDir(dir)
}

// findStagedDir returns the only directory directly under dir.
func findStagedDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var found []string

	for _, e := range entries {
		if e.IsDir() {
			found = append(found, e.Name())
		}
	}

	if len(found) != 1 {
		return "", fmt.Errorf("%w: found %d", errPayloadLayout, len(found))
	}

	return filepath.Join(dir, found[0]), nil
}
