package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/prompt"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/common"
	"github.com/oshokin/app-installer/internal/sfx"
)

// InstallerExtension is appended to default installer names.
const InstallerExtension = ".run"

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// StagedDir is the tree to embed; the configured staging dir when empty.
	StagedDir string
	// OutputPath is the installer to create; the operator is asked when empty.
	OutputPath string
	// StubPath is the installer program; the running executable when empty.
	StubPath string
	// ModeMarker is the build mode marker baked into the stub.
	ModeMarker string
	// ExtractMarker replaces ModeMarker in the packed copy.
	ExtractMarker string
	// Prompter asks for the output path.
	Prompter prompt.Prompter
}

// packager creates one installer.
type packager struct {
	// cfg holds the chunk size and default staging dir.
	cfg *config.Config
	// stagedDir is the absolute tree to embed.
	stagedDir string
	// manifest names the installer and is logged with the result.
	manifest *release.Manifest
	prompter prompt.Prompter
}

var (
	// errOutputInsideTree is returned when the installer would be written into the tree it embeds.
	errOutputInsideTree = errors.New("installer path must be outside the staged tree")
	// errOutputIsStub is returned when the installer would overwrite the program it is made from.
	errOutputIsStub = errors.New("installer path must differ from the installer program")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "app-packager")

	pkg, err := newPackager(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = pkg.Run(ctx, opts); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	return nil
}

func newPackager(ctx context.Context, opts *Options) (*packager, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	stagedDir := opts.StagedDir
	if stagedDir == "" {
		stagedDir = cfg.StagingDir
	}

	stagedDir, err = filepath.Abs(stagedDir)
	if err != nil {
		return nil, fmt.Errorf("resolve staged dir: %w", err)
	}

	manifest, err := repository.NewFileRepository(stagedDir).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manifest, run app-builder first: %w", err)
	}

	prompter := opts.Prompter
	if prompter == nil {
		prompter = prompt.Defaults{}
	}

	return &packager{
		cfg:       cfg,
		stagedDir: stagedDir,
		manifest:  manifest,
		prompter:  prompter,
	}, nil
}

// Run writes the installer.
func (p *packager) Run(ctx context.Context, opts *Options) error {
	outputPath, err := p.resolveOutputPath(ctx, opts.OutputPath)
	if err != nil {
		return err
	}

	stubPath := opts.StubPath
	if stubPath == "" {
		if stubPath, err = os.Executable(); err != nil {
			return fmt.Errorf("locate installer program: %w", err)
		}
	}

	if err = checkDistinct(stubPath, outputPath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Creating installer",
		"app", p.manifest.String(),
		"stub", stubPath,
		"output", outputPath,
	)

	result, err := p.write(ctx, stubPath, outputPath, opts)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installer created",
		"path", outputPath,
		"files", len(result.Files),
		"payload_bytes", result.PayloadBytes,
		"chunks", result.Chunks,
	)
	logger.Infof(ctx, "Copy %s to the target machine and run it with administrator rights", outputPath)

	return nil
}

// write packs stubPath into outputPath. Once the output is opened, a failed
// write removes it; a file it could not open is left alone.
func (p *packager) write(ctx context.Context, stubPath, outputPath string, opts *Options) (result *sfx.PackResult, err error) {
	stub, err := os.Open(filepath.Clean(stubPath))
	if err != nil {
		return nil, fmt.Errorf("open installer program: %w", err)
	}

	defer func() {
		_ = stub.Close()
	}()

	output, err := os.OpenFile(filepath.Clean(outputPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, common.ExecutableMode)
	if err != nil {
		return nil, fmt.Errorf("create installer: %w", err)
	}

	defer func() {
		if err != nil {
			_ = output.Close()
			_ = os.Remove(outputPath)
		}
	}()

	result, err = sfx.Pack(ctx, &sfx.PackOptions{
		StagedDir:     p.stagedDir,
		Stub:          stub,
		Output:        output,
		ModeMarker:    opts.ModeMarker,
		ExtractMarker: opts.ExtractMarker,
		ChunkSize:     p.cfg.ChunkSize,
		WorkDir:       filepath.Dir(outputPath),
		Progress: func(done, total int64) {
			logger.DebugKV(ctx, "Payload written", "done", done, "total", total)
		},
	})
	if err != nil {
		return nil, err
	}

	if err = output.Close(); err != nil {
		return nil, fmt.Errorf("close installer: %w", err)
	}

	if err = os.Chmod(outputPath, common.ExecutableMode); err != nil {
		return nil, fmt.Errorf("mark installer executable: %w", err)
	}

	return result, nil
}

// resolveOutputPath uses the option, else offers ~/<name>-<version>.run.
func (p *packager) resolveOutputPath(ctx context.Context, outputPath string) (string, error) {
	if outputPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}

		outputPath, err = prompt.ChangeDefault(ctx, p.prompter, "installer path", filepath.Join(home, DefaultInstallerName(p.manifest)))
		if err != nil {
			return "", err
		}
	}

	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return "", fmt.Errorf("resolve installer path: %w", err)
	}

	rel, err := filepath.Rel(p.stagedDir, abs)
	if err == nil && filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s: %w", abs, errOutputInsideTree)
	}

	return abs, nil
}

// checkDistinct refuses an output that resolves to the stub itself.
func checkDistinct(stubPath, outputPath string) error {
	stubAbs, err := filepath.Abs(stubPath)
	if err != nil {
		return fmt.Errorf("resolve installer program: %w", err)
	}

	if stubAbs == outputPath {
		return fmt.Errorf("%s: %w", outputPath, errOutputIsStub)
	}

	stubInfo, err := os.Stat(stubAbs)
	if err != nil {
		return fmt.Errorf("open installer program: %w", err)
	}

	outputInfo, err := os.Stat(outputPath)
	if err == nil && os.SameFile(stubInfo, outputInfo) {
		return fmt.Errorf("%s: %w", outputPath, errOutputIsStub)
	}

	return nil
}

// DefaultInstallerName returns "<name>-<version>.run".
func DefaultInstallerName(m *release.Manifest) string {
	return strings.ReplaceAll(m.Name, string(filepath.Separator), "_") + "-" + m.Version + InstallerExtension
}
