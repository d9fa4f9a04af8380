package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/service/common"
)

// UninstallOptions contains inputs for removing an installation.
type UninstallOptions struct {
	// InstallDir holds the uninstall script.
	InstallDir string
	// Runner executes the script.
	Runner common.Runner
}

// ErrNotInstalled is returned when the install directory has no uninstall script.
var ErrNotInstalled = errors.New("no installation found")

// Uninstall runs the uninstall script generated for the installation.
func Uninstall(ctx context.Context, opts *UninstallOptions) error {
	ctx = logger.WithName(ctx, "app-uninstaller")

	script := filepath.Join(opts.InstallDir, release.UninstallScript)
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("%s: %w", opts.InstallDir, ErrNotInstalled)
	}

	runner := opts.Runner
	if runner == nil {
		runner = common.NewExecRunner()
	}

	logger.InfoKV(ctx, "Running uninstall script", "path", script)

	if err := runner.Run(ctx, common.Command{Name: "sh", Args: []string{script}}); err != nil {
		return fmt.Errorf("uninstall: %w", err)
	}

	return nil
}
