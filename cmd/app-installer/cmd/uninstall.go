package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/app-installer/internal/config"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/installer"
	"github.com/oshokin/app-installer/internal/service/platform"
	"github.com/oshokin/app-installer/internal/version"
)

// attachCommands registers the subcommands of root.
func attachCommands(root *cobra.Command) {
	version.AttachCobraVersionCommand(root)

	root.AddCommand(&cobra.Command{
		Use:   "uninstall [install-dir]",
		Short: "Remove an installation by running its uninstall script",
		Long: "Remove an installation by running its uninstall script. Without an argument the\n" +
			"default install directory of the staged application is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}

			if dir == "" {
				var err error

				if dir, err = defaultInstallDir(ctx); err != nil {
					return err
				}
			}

			return installer.Uninstall(ctx, &installer.UninstallOptions{InstallDir: dir})
		},
	})
}

// defaultInstallDir derives the install directory from the staged manifest.
func defaultInstallDir(ctx context.Context) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}

	dir := stagedDir
	if dir == "" {
		dir = cfg.StagingDir
	}

	m, err := repository.NewFileRepository(dir).Load(ctx)
	if err != nil {
		return "", err
	}

	return platform.DefaultInstallDir(platform.Current(), cfg.InstallRoot, m.Target, m.Name), nil
}
