package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/prompt"
	"github.com/oshokin/app-installer/internal/service/extractor"
	"github.com/oshokin/app-installer/internal/service/installer"
	"github.com/oshokin/app-installer/internal/service/packager"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stagedDir is the staged tree produced by app-builder.
	stagedDir string
	// outputPath is the installer to create.
	outputPath string
	// installDir is the install destination.
	installDir string
	// logLevel is the minimum log level.
	logLevel string
	// installLocal selects the local install without the menu.
	installLocal bool
	// createInstaller selects installer creation without the menu.
	createInstaller bool
	// assumeDefaults answers every question with its default.
	assumeDefaults bool

	// rootCmd represents the base command for installing and packaging the application.
	rootCmd = &cobra.Command{
		Use:   "app-installer",
		Short: "Install the staged application or create a self-extracting installer",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.SetLevelName(logLevel)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return run(ctx, newPrompter())
		},
	}
)

// Menu entries in display order.
const (
	menuLocal = iota
	menuInstaller
	menuExit
)

// errUnknownAction is returned for a menu index outside the menu.
var errUnknownAction = errors.New("unknown action")

// Execute runs the app-installer CLI and exits with non-zero status on error.
func Execute() {
	attachCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&installLocal, "local", "l", false, "install onto this machine")
	flags.BoolVarP(&createInstaller, "installer", "i", false, "create a self-extracting installer")
	flags.StringVarP(&outputPath, "output", "o", "", "installer path, ~/<name>-<version>.run by default")
	flags.StringVar(&installDir, "install-dir", "", "install directory")
	rootCmd.MarkFlagsMutuallyExclusive("local", "installer")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&stagedDir, "dir", "d", "", "staged tree produced by app-builder")
	persistent.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	persistent.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	persistent.BoolVarP(&assumeDefaults, "yes", "y", false, "do not ask questions, keep defaults")
}

//nolint:ireturn // Selected by flag.
func newPrompter() prompt.Prompter {
	if assumeDefaults {
		return prompt.Defaults{}
	}

	return prompt.NewTUI(os.Stdin, os.Stdout)
}

// run dispatches on the baked-in mode, then on flags, then on the menu.
func run(ctx context.Context, prompter prompt.Prompter) error {
	if isSelfExtracting() {
		return extractor.Run(ctx, &extractor.Options{
			ConfigPath: configPath,
			InstallDir: installDir,
			Prompter:   prompter,
		})
	}

	var action int

	switch {
	case installLocal:
		action = menuLocal
	case createInstaller:
		action = menuInstaller
	default:
		choice, err := prompter.Choose(ctx, "What do you want to do?", []string{
			"Install onto this machine",
			"Create an installer",
			"Exit",
		})
		if err != nil {
			return err
		}

		action = choice
	}

	switch action {
	case menuLocal:
		return installer.Run(ctx, &installer.Options{
			ConfigPath: configPath,
			StagedDir:  stagedDir,
			InstallDir: installDir,
			Prompter:   prompter,
		})
	case menuInstaller:
		return packager.Run(ctx, &packager.Options{
			ConfigPath:    configPath,
			StagedDir:     stagedDir,
			OutputPath:    outputPath,
			ModeMarker:    modeMarker,
			ExtractMarker: extractModeMarker,
			Prompter:      prompter,
		})
	case menuExit:
		return nil
	default:
		return fmt.Errorf("%d: %w", action, errUnknownAction)
	}
}
