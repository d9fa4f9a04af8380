package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/prompt"
	"github.com/oshokin/app-installer/internal/service/builder"
	"github.com/oshokin/app-installer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// projectDir is the project root.
	projectDir string
	// headerPath overrides the identity header.
	headerPath string
	// qtDir overrides the toolkit bin directory.
	qtDir string
	// logLevel is the minimum log level.
	logLevel string
	// assumeDefaults answers every question with its default.
	assumeDefaults bool

	// rootCmd represents the base command for building and staging the application.
	rootCmd = &cobra.Command{
		Use:   "app-builder",
		Short: "Build the application and stage it for installation",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.SetLevelName(logLevel)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var prompter prompt.Prompter = prompt.NewTUI(os.Stdin, os.Stdout)
			if assumeDefaults {
				prompter = prompt.Defaults{}
			}

			options := &builder.Options{
				ConfigPath:    configPath,
				ProjectDir:    projectDir,
				HeaderPath:    headerPath,
				ToolkitBinDir: qtDir,
				Prompter:      prompter,
			}

			return builder.Run(ctx, options)
		},
	}
)

// Execute runs the app-builder CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&projectDir, "project", "p", ".", "project root directory")
	flags.StringVar(&headerPath, "header", "", "header declaring APP_TARGET, APP_VER and APP_NAME")
	flags.StringVar(&qtDir, "qt-dir", "", "Qt bin directory holding qmake")
	flags.BoolVarP(&assumeDefaults, "yes", "y", false, "do not ask questions, keep defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
