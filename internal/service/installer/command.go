package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/prompt"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/common"
	"github.com/oshokin/app-installer/internal/service/platform"
)

// Options contains inputs for a local install.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// StagedDir is the staged tree holding the platform directories and the manifest.
	StagedDir string
	// InstallDir is the destination; the operator is asked when empty.
	InstallDir string
	// Manifest overrides the manifest stored in StagedDir.
	Manifest *release.Manifest
	// OS overrides the target operating system; runtime.GOOS when empty.
	OS string
	// Runner executes the system tools.
	Runner common.Runner
	// Prompter asks for the install directory.
	Prompter prompt.Prompter
}

var (
	// ErrStagedTreeMissing is returned when the staged platform directory does not exist.
	ErrStagedTreeMissing = errors.New("staged tree not found, run app-builder first")
	// errManifestRequired is returned when neither a manifest nor a staged manifest is available.
	errManifestRequired = errors.New("manifest is required")
)

// useraddUserExists is the useradd exit status for an existing account.
const useraddUserExists = 9

// installer holds the state of one install run.
type installer struct {
	cfg        *config.Config
	goos       string
	stagedDir  string
	installDir string
	manifest   *release.Manifest
	// installed persists the manifest of the installation in installDir.
	installed repository.Repository
	runner    common.Runner
	prompter  prompt.Prompter
}

// Run installs the staged tree on the local machine.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "app-installer")

	inst, err := newInstaller(opts)
	if err != nil {
		return fmt.Errorf("initialize installer: %w", err)
	}

	if err = inst.Run(ctx, opts); err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}

	return nil
}

func newInstaller(opts *Options) (*installer, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	goos := opts.OS
	if goos == "" {
		goos = platform.Current()
	}

	runner := opts.Runner
	if runner == nil {
		runner = common.NewExecRunner()
	}

	prompter := opts.Prompter
	if prompter == nil {
		prompter = prompt.Defaults{}
	}

	stagedDir := opts.StagedDir
	if stagedDir == "" {
		stagedDir = cfg.StagingDir
	}

	return &installer{
		cfg:       cfg,
		goos:      goos,
		stagedDir: stagedDir,
		runner:    runner,
		prompter:  prompter,
	}, nil
}

// Run performs the install steps in order; the first failure stops the run.
func (i *installer) Run(ctx context.Context, opts *Options) error {
	if err := platform.Require(i.goos); err != nil {
		return err
	}

	if err := i.loadManifest(ctx, opts.Manifest); err != nil {
		return err
	}

	if err := i.resolveInstallDir(ctx, opts.InstallDir); err != nil {
		return err
	}

	i.installed = repository.NewFileRepository(i.installDir)
	ctx = logger.WithKV(ctx, "target", i.manifest.Target, "install_dir", i.installDir)

	i.reportActor(ctx)
	i.reportVersionChange(ctx)

	steps := []func(context.Context) error{
		i.uninstallPrevious,
		i.stopRunningInstances,
		i.createDirectories,
		i.copyFiles,
		i.linkLauncher,
		i.configureSystem,
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}

	logger.InfoKV(ctx, "Installation complete", "version", i.manifest.Version)
	logger.Infof(ctx, "To uninstall run: sudo sh %s", filepath.Join(i.installDir, release.UninstallScript))

	return nil
}

func (i *installer) linuxDir() string {
	return filepath.Join(i.stagedDir, release.LinuxDir)
}

func (i *installer) dataDir() string {
	return filepath.Join(i.cfg.DataRoot, i.manifest.Target)
}

func (i *installer) serviceUnitPath() string {
	return filepath.Join(i.cfg.ServiceDir, release.ServiceUnit(i.manifest.Target))
}

func (i *installer) loadManifest(ctx context.Context, manifest *release.Manifest) error {
	info, err := os.Stat(i.linuxDir())
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", i.linuxDir(), ErrStagedTreeMissing)
	}

	if manifest != nil {
		i.manifest = manifest.Clone()
		return i.manifest.Validate()
	}

	i.manifest, err = repository.NewFileRepository(i.stagedDir).Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errManifestRequired, err)
	}

	return nil
}

// resolveInstallDir uses the option, else offers the default and lets the operator change it.
// A blank answer keeps the default.
func (i *installer) resolveInstallDir(ctx context.Context, dir string) error {
	defaultDir := platform.DefaultInstallDir(i.goos, i.cfg.InstallRoot, i.manifest.Target, i.manifest.Name)

	if dir == "" {
		answer, err := prompt.ChangeDefault(ctx, i.prompter, "install directory", defaultDir)
		if err != nil {
			return err
		}

		dir = answer
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve install dir: %w", err)
	}

	i.installDir = abs

	return nil
}

// reportActor logs who installs. System directories and accounts need root.
func (i *installer) reportActor(ctx context.Context) {
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect the current user", "error", err)
		return
	}

	logger.InfoKV(ctx, "Installing", "user", actor.Username, "host", actor.Hostname)

	if !actor.IsRoot {
		logger.Warn(ctx, "Not running as root, system steps may fail; rerun with sudo if they do")
	}
}

// reportVersionChange compares the installed manifest, if any, with the incoming one.
func (i *installer) reportVersionChange(ctx context.Context) {
	installed, err := i.installed.Load(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.WarnKV(ctx, "Unable to read the installed manifest", "error", err)
		}

		logger.InfoKV(ctx, "Fresh install", "version", i.manifest.Version)

		return
	}

	change := Compare(installed.Version, i.manifest.Version)
	logger.InfoKV(ctx, change.String(), "installed", installed.Version, "incoming", i.manifest.Version)
}

// uninstallPrevious runs the uninstall script of an earlier installation.
func (i *installer) uninstallPrevious(ctx context.Context) error {
	script := filepath.Join(i.installDir, release.UninstallScript)
	if _, err := os.Stat(script); err != nil {
		return nil //nolint:nilerr // Nothing installed yet.
	}

	logger.Info(ctx, "Removing the previous installation")

	err := i.runner.Run(ctx, common.Command{Name: "sh", Args: []string{script}})
	if err != nil {
		// The script removes what it finds; partial installs make some steps fail.
		logger.WarnKV(ctx, "Previous uninstall script reported an error", "error", err)
	}

	return nil
}

func (i *installer) stopRunningInstances(ctx context.Context) error {
	killed, err := terminateProcessesByName(i.manifest.Target)
	if err != nil {
		return fmt.Errorf("stop running instances: %w", err)
	}

	if killed > 0 {
		logger.InfoKV(ctx, "Stopped running instances", "count", killed)
	}

	return nil
}

// createDirectories makes the install and data directories. Permission errors are only reported.
func (i *installer) createDirectories(ctx context.Context) error {
	for _, dir := range []string{i.installDir, i.dataDir()} {
		err := os.MkdirAll(dir, common.DirMode)
		if err == nil {
			continue
		}

		if errors.Is(err, fs.ErrPermission) {
			logger.WarnKV(ctx, "Permission denied creating directory", "path", dir, "error", err)
			continue
		}

		return fmt.Errorf("create %s: %w", dir, err)
	}

	return nil
}

func (i *installer) copyFiles(ctx context.Context) error {
	src := i.linuxDir()
	target := i.manifest.Target

	for _, script := range []string{release.LauncherScript(target), release.UninstallScript} {
		err := common.CopyWithSubstitution(
			filepath.Join(src, script),
			filepath.Join(i.installDir, script),
			release.InstallDirPlaceholder,
			i.installDir,
		)
		if err != nil {
			return fmt.Errorf("install %s: %w", script, err)
		}
	}

	if err := i.installExecutable(ctx); err != nil {
		return err
	}

	for _, dir := range []string{release.LibDir, release.SQLDriversDir} {
		if err := common.CopyTree(filepath.Join(src, dir), filepath.Join(i.installDir, dir)); err != nil {
			return fmt.Errorf("install %s: %w", dir, err)
		}
	}

	if err := i.installed.Save(ctx, i.manifest); err != nil {
		return fmt.Errorf("install manifest: %w", err)
	}

	unit := release.ServiceUnit(target)
	if err := common.CopyFile(filepath.Join(src, unit), i.serviceUnitPath()); err != nil {
		return fmt.Errorf("install %s: %w", unit, err)
	}

	logger.Debug(ctx, "Files copied")

	return nil
}

func (i *installer) linkLauncher(ctx context.Context) error {
	launcher := filepath.Join(i.installDir, release.LauncherScript(i.manifest.Target))
	link := filepath.Join(i.cfg.BinLinkDir, i.manifest.Target)

	if err := common.ReplaceSymlink(launcher, link); err != nil {
		return fmt.Errorf("link launcher: %w", err)
	}

	logger.DebugKV(ctx, "Launcher linked", "link", link)

	return nil
}

// configureSystem creates the service account, fixes ownership and starts the service.
func (i *installer) configureSystem(ctx context.Context) error {
	target := i.manifest.Target

	err := i.runner.Run(ctx, common.Command{Name: "useradd", Args: []string{"-r", target}})
	if err != nil {
		if common.ExitCode(err) != useraddUserExists {
			return fmt.Errorf("create service account: %w", err)
		}

		logger.InfoKV(ctx, "Service account already exists", "user", target)
	}

	commands := []common.Command{
		{Name: "chmod", Args: []string{"-R", "755", i.installDir}},
		{Name: "chmod", Args: []string{"755", i.serviceUnitPath()}},
		{Name: "chown", Args: []string{"-R", target + ":" + target, i.dataDir()}},
		{Name: "systemctl", Args: []string{"start", target}},
		{Name: "systemctl", Args: []string{"enable", target}},
	}

	for _, cmd := range commands {
		if err = i.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}

	return nil
}
