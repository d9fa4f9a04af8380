package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/prompt"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/common"
	"github.com/oshokin/app-installer/internal/service/platform"
)

// Options contains inputs for the build stage.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// ProjectDir is the project root; the current directory when empty.
	ProjectDir string
	// HeaderPath overrides the project header holding the application identity.
	HeaderPath string
	// ToolkitBinDir overrides the toolkit bin directory.
	ToolkitBinDir string
	// OS overrides the target operating system; runtime.GOOS when empty.
	OS string
	// Runner executes the toolkit and system tools.
	Runner common.Runner
	// Prompter asks for the toolkit location when it cannot be detected.
	Prompter prompt.Prompter
}

// builder holds the state of one build run.
// Callers go through Run, which loads settings and fills defaults.
type builder struct {
	// cfg holds the project layout and bundling settings.
	cfg *config.Config
	// projectDir is the absolute project root.
	projectDir string
	// goos selects the staging procedure.
	goos string
	// toolkitBinDir holds qmake.
	toolkitBinDir string
	// manifest is the identity read from the header, completed with checksums at the end.
	manifest *release.Manifest
	runner   common.Runner
	prompter prompt.Prompter
}

var (
	// ErrBuildCancelled is returned when no toolkit location is available.
	ErrBuildCancelled = errors.New("build cancelled: toolkit bin directory is unknown")
	// errToolkitNotDetected is returned when qtpaths gives no usable answer.
	errToolkitNotDetected = errors.New("qtpaths returned an empty bin directory")
)

// Run executes the build stage.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "app-builder")

	b, err := newBuilder(opts)
	if err != nil {
		return fmt.Errorf("initialize builder: %w", err)
	}

	if err = b.Run(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	return nil
}

func newBuilder(opts *Options) (*builder, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}

	projectDir, err = filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	if opts.HeaderPath != "" {
		cfg.HeaderPath = opts.HeaderPath
	}

	if opts.ToolkitBinDir != "" {
		cfg.ToolkitBinDir = opts.ToolkitBinDir
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

	return &builder{
		cfg:        cfg,
		projectDir: projectDir,
		goos:       goos,
		runner:     runner,
		prompter:   prompter,
	}, nil
}

// Run reads the identity, builds the project and stages the platform tree.
func (b *builder) Run(ctx context.Context) error {
	manifest, err := ReadIdentity(b.projectPath(b.cfg.HeaderPath))
	if err != nil {
		return err
	}

	b.manifest = manifest

	if err = b.resolveToolkitBinDir(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Application identity",
		"app_target", manifest.Target,
		"app_version", manifest.Version,
		"app_name", manifest.Name,
		"qt_bin", b.toolkitBinDir,
	)

	if err = platform.Require(b.goos); err != nil {
		return err
	}

	if err = b.compile(ctx); err != nil {
		return err
	}

	if err = b.stageLinux(ctx); err != nil {
		return err
	}

	if err = b.saveManifest(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Build complete", "version", manifest.Version, "staging_dir", b.stagingDir())
	logger.Info(ctx, "You can now run app-installer to install onto this machine or create an installer")

	return nil
}

// resolveToolkitBinDir picks the toolkit location: flag or settings, then qtpaths, then the operator.
func (b *builder) resolveToolkitBinDir(ctx context.Context) error {
	if b.cfg.ToolkitBinDir != "" {
		b.toolkitBinDir = b.cfg.ToolkitBinDir
		return nil
	}

	dir, err := b.detectToolkitBinDir(ctx)
	if err == nil {
		b.toolkitBinDir = dir
		return nil
	}

	logger.WarnKV(ctx, "A call to qtpaths to get the toolkit bin folder failed", "error", err)

	dir, err = b.prompter.Input(ctx, "Please enter the QT bin path (leave blank to cancel the build)", "")
	if err != nil {
		return err
	}

	if dir == "" {
		return ErrBuildCancelled
	}

	b.toolkitBinDir = dir

	return nil
}

func (b *builder) detectToolkitBinDir(ctx context.Context) (string, error) {
	out, err := b.runner.Output(ctx, common.Command{
		Name: "qtpaths",
		Args: []string{"--binaries-dir"},
	})
	if err != nil {
		return "", err
	}

	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return "", errToolkitNotDetected
	}

	return dir, nil
}

// compile runs qmake then make in the project directory. A failing step stops the build.
func (b *builder) compile(ctx context.Context) error {
	steps := []common.Command{
		{
			Dir:  b.projectDir,
			Name: filepath.Join(b.toolkitBinDir, "qmake"),
			Args: []string{"-config", "release"},
		},
		{
			Dir:  b.projectDir,
			Name: "make",
		},
	}

	for _, step := range steps {
		logger.InfoKV(ctx, "Running build step", "command", step.String())

		if err := b.runner.Run(ctx, step); err != nil {
			return fmt.Errorf("build step: %w", err)
		}
	}

	return nil
}

// stageLinux lays out the Linux tree: executable, SQL driver, bundled libraries and generated files.
func (b *builder) stageLinux(ctx context.Context) error {
	linuxDir := filepath.Join(b.stagingDir(), release.LinuxDir)

	// Libraries of an earlier build must not end up in this manifest.
	if err := os.RemoveAll(linuxDir); err != nil {
		return fmt.Errorf("clear staging directory: %w", err)
	}

	for _, dir := range []string{
		filepath.Join(linuxDir, release.SQLDriversDir),
		filepath.Join(linuxDir, release.LibDir),
	} {
		if err := os.MkdirAll(dir, common.DirMode); err != nil {
			return fmt.Errorf("create staging directory: %w", err)
		}
	}

	target := b.manifest.Target
	executable := filepath.Join(linuxDir, target)

	copies := []struct{ src, dst string }{
		{
			src: filepath.Join(b.toolkitBinDir, "..", "plugins", release.SQLDriversDir, "libqsqlite.so"),
			dst: filepath.Join(linuxDir, release.SQLDriversDir, "libqsqlite.so"),
		},
		{
			src: b.projectPath(filepath.Join(b.cfg.BuildDir, target+platform.ExecutableExtension(b.goos))),
			dst: executable,
		},
	}

	for _, c := range copies {
		if err := verboseCopy(ctx, c.src, c.dst); err != nil {
			return err
		}
	}

	if err := b.bundleLibraries(ctx, executable, filepath.Join(linuxDir, release.LibDir)); err != nil {
		return err
	}

	return b.writeGeneratedFiles(linuxDir)
}

// bundleLibraries copies the toolkit, ICU and TLS libraries the executable links against.
func (b *builder) bundleLibraries(ctx context.Context, executable, libDir string) error {
	inspected, cleanup, err := executableForLdd(executable)
	if err != nil {
		return err
	}

	defer cleanup()

	out, err := b.runner.Output(ctx, common.Command{Name: "ldd", Args: []string{inspected}})
	if err != nil {
		return fmt.Errorf("list shared libraries: %w", err)
	}

	libraries := ParseLddOutput(string(out), b.cfg.BundleLibraries)
	logger.InfoKV(ctx, "Bundling shared libraries", "count", len(libraries))

	for _, lib := range libraries {
		if err = verboseCopy(ctx, lib, filepath.Join(libDir, filepath.Base(lib))); err != nil {
			return err
		}
	}

	return nil
}

// executableForLdd returns a path ldd can inspect. A binary on a noexec mount
// is copied to a fresh temp directory first; cleanup removes that copy.
func executableForLdd(executable string) (string, func(), error) {
	noExec, err := platform.IsNoExec(filepath.Dir(executable))
	if err != nil || !noExec {
		return executable, func() {}, nil //nolint:nilerr // Unknown mount flags: inspect in place.
	}

	dir, err := os.MkdirTemp("", "app-builder-ldd-")
	if err != nil {
		return "", nil, fmt.Errorf("create ldd work dir: %w", err)
	}

	cleanup := func() {
		_ = os.RemoveAll(dir)
	}

	copied := filepath.Join(dir, filepath.Base(executable))
	if err = common.CopyFile(executable, copied); err != nil {
		cleanup()
		return "", nil, err
	}

	return copied, cleanup, nil
}

// saveManifest fingerprints every staged file and writes the manifest last.
func (b *builder) saveManifest(ctx context.Context) error {
	root := b.stagingDir()
	b.manifest.Files = make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.Type().IsRegular() {
			return walkErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if rel == repository.Filename || rel == repository.LegacyFilename {
			return nil
		}

		sum, err := common.FileChecksum(path)
		if err != nil {
			return err
		}

		b.manifest.Files[filepath.ToSlash(rel)] = common.EncodeChecksum(sum)

		return nil
	})
	if err != nil {
		return fmt.Errorf("fingerprint staged files: %w", err)
	}

	b.manifest.BuiltAt = time.Now().UTC()

	repo := repository.NewFileRepository(root)
	if err = repo.Save(ctx, b.manifest); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest written", "path", repo.Path(), "files", len(b.manifest.Files))

	return nil
}

func (b *builder) stagingDir() string {
	return b.projectPath(b.cfg.StagingDir)
}

func (b *builder) projectPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(b.projectDir, rel)
}

func verboseCopy(ctx context.Context, src, dst string) error {
	logger.DebugKV(ctx, "cpy", "src", src, "dst", dst)

	if err := common.CopyTree(src, dst); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return nil
}
