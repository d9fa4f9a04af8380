package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/app-installer/internal/config"
	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/prompt"
	repository "github.com/oshokin/app-installer/internal/repository/manifest"
	"github.com/oshokin/app-installer/internal/service/common"
	"github.com/oshokin/app-installer/internal/service/common/commontest"
	"github.com/oshokin/app-installer/internal/service/platform"
)

const testTarget = "sfxdemo"

// environment is a staged tree plus fake system directories.
type environment struct {
	stagedDir  string
	installDir string
	configPath string
	cfg        *config.Config
}

func newEnvironment(t *testing.T, version string) *environment {
	t.Helper()

	root := t.TempDir()
	cfg := config.New()
	cfg.InstallRoot = filepath.Join(root, "opt")
	cfg.DataRoot = filepath.Join(root, "var", "opt")
	cfg.ServiceDir = filepath.Join(root, "systemd")
	cfg.BinLinkDir = filepath.Join(root, "bin")

	env := &environment{
		stagedDir:  filepath.Join(root, "app_dir"),
		installDir: filepath.Join(cfg.InstallRoot, testTarget),
		configPath: filepath.Join(root, "settings.yaml"),
		cfg:        cfg,
	}

	require.NoError(t, config.Save(env.configPath, cfg))
	require.NoError(t, os.MkdirAll(cfg.ServiceDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.BinLinkDir, 0o755))

	linuxDir := filepath.Join(env.stagedDir, release.LinuxDir)
	writeFile(t, filepath.Join(linuxDir, testTarget), "ELF "+version, 0o755)
	writeFile(t, filepath.Join(linuxDir, testTarget+".sh"), "#!/bin/sh\nexec $install_dir/"+testTarget+" \"$@\"\n", 0o755)
	writeFile(t, filepath.Join(linuxDir, release.UninstallScript), "#!/bin/sh\nrm -rv $install_dir\n", 0o755)
	writeFile(t, filepath.Join(linuxDir, testTarget+".service"), "[Unit]\n", 0o644)
	writeFile(t, filepath.Join(linuxDir, release.LibDir, "libQt5Core.so.5"), "qt core", 0o644)
	writeFile(t, filepath.Join(linuxDir, release.SQLDriversDir, "libqsqlite.so"), "sqlite", 0o644)

	sum, err := common.FileChecksum(filepath.Join(linuxDir, testTarget))
	require.NoError(t, err)

	m := release.New(testTarget, version, "Demo")
	m.Files["linux/"+testTarget] = common.EncodeChecksum(sum)
	require.NoError(t, repository.NewFileRepository(env.stagedDir).Save(context.Background(), m))

	return env
}

func (e *environment) options(runner common.Runner) *Options {
	return &Options{
		ConfigPath: e.configPath,
		StagedDir:  e.stagedDir,
		OS:         "linux",
		Runner:     runner,
		Prompter:   prompt.Defaults{},
	}
}

func writeFile(t *testing.T, path, contents string, mode os.FileMode) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), mode))
}

// TestRun_FreshInstall copies the tree and configures the service in order.
func TestRun_FreshInstall(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, "1.0.0")
	runner := new(commontest.Runner)

	require.NoError(t, Run(context.Background(), env.options(runner)))

	unit := filepath.Join(env.cfg.ServiceDir, testTarget+".service")
	dataDir := filepath.Join(env.cfg.DataRoot, testTarget)

	require.Equal(t, []string{
		"useradd -r " + testTarget,
		"chmod -R 755 " + env.installDir,
		"chmod 755 " + unit,
		"chown -R " + testTarget + ":" + testTarget + " " + dataDir,
		"systemctl start " + testTarget,
		"systemctl enable " + testTarget,
	}, runner.Commands())

	executable, err := os.ReadFile(filepath.Join(env.installDir, testTarget))
	require.NoError(t, err)
	require.Equal(t, "ELF 1.0.0", string(executable))

	info, err := os.Stat(filepath.Join(env.installDir, testTarget))
	require.NoError(t, err)
	require.Equal(t, common.ExecutableMode, info.Mode().Perm())

	launcher, err := os.ReadFile(filepath.Join(env.installDir, testTarget+".sh"))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\nexec "+env.installDir+"/"+testTarget+" \"$@\"\n", string(launcher))

	uninstall, err := os.ReadFile(filepath.Join(env.installDir, release.UninstallScript))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\nrm -rv "+env.installDir+"\n", string(uninstall))

	require.FileExists(t, filepath.Join(env.installDir, release.LibDir, "libQt5Core.so.5"))
	require.FileExists(t, filepath.Join(env.installDir, release.SQLDriversDir, "libqsqlite.so"))
	require.FileExists(t, unit)
	require.DirExists(t, dataDir)

	link, err := os.Readlink(filepath.Join(env.cfg.BinLinkDir, testTarget))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(env.installDir, testTarget+".sh"), link)

	installed, err := repository.NewFileRepository(env.installDir).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.0.0", installed.Version)
}

// TestRun_ReplacesPreviousInstall runs the old uninstall script first and replaces the files.
func TestRun_ReplacesPreviousInstall(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, "1.1.0")
	opts := env.options(new(commontest.Runner))
	require.NoError(t, Run(context.Background(), opts))

	writeFile(t, filepath.Join(env.installDir, release.LibDir, "stale.so"), "old", 0o644)

	runner := new(commontest.Runner)
	opts.Runner = runner
	opts.InstallDir = env.installDir
	require.NoError(t, Run(context.Background(), opts))

	commands := runner.Commands()
	require.Equal(t, "sh "+filepath.Join(env.installDir, release.UninstallScript), commands[0])
	require.Len(t, commands, 7)
	require.NoFileExists(t, filepath.Join(env.installDir, release.LibDir, "stale.so"))
}

// TestRun_ExistingServiceAccount tolerates useradd reporting an existing user.
func TestRun_ExistingServiceAccount(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, "1.0.0")
	runner := &commontest.Runner{
		Handler: func(cmd common.Command) ([]byte, error) {
			if cmd.Name == "useradd" {
				return nil, &common.ExitError{Command: cmd, Code: useraddUserExists}
			}

			return nil, nil
		},
	}

	require.NoError(t, Run(context.Background(), env.options(runner)))
	require.Len(t, runner.Commands(), 6)
}

// TestRun_CommandFailureStops does not continue after a failing system command.
func TestRun_CommandFailureStops(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, "1.0.0")
	runner := &commontest.Runner{
		Handler: func(cmd common.Command) ([]byte, error) {
			if cmd.Name == "useradd" {
				return nil, &common.ExitError{Command: cmd, Code: 1}
			}

			return nil, nil
		},
	}

	err := Run(context.Background(), env.options(runner))
	require.ErrorIs(t, err, common.ErrCommandFailed)
	require.Equal(t, []string{"useradd -r " + testTarget}, runner.Commands())
}

// TestRun_ChecksumMismatch refuses a staged executable that differs from the manifest.
func TestRun_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, "1.0.0")
	writeFile(t, filepath.Join(env.stagedDir, release.LinuxDir, testTarget), "tampered", 0o755)

	runner := new(commontest.Runner)

	require.Error(t, Run(context.Background(), env.options(runner)))
	require.Empty(t, runner.Commands())

	contents, err := os.ReadFile(filepath.Join(env.installDir, testTarget))
	require.NoError(t, err)
	require.NotEqual(t, "tampered", string(contents))
}

// TestRun_ExplicitManifest installs without a staged manifest file.
func TestRun_ExplicitManifest(t *testing.T) {
	t.Parallel()

	env := newEnvironment(t, "1.0.0")
	require.NoError(t, os.Remove(filepath.Join(env.stagedDir, repository.Filename)))

	opts := env.options(new(commontest.Runner))
	opts.Manifest = release.New(testTarget, "1.0.0", "Demo")

	require.NoError(t, Run(context.Background(), opts))
	require.FileExists(t, filepath.Join(env.installDir, testTarget))
}

// TestRun_Preconditions fails before touching the system.
func TestRun_Preconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(t *testing.T, env *environment, opts *Options)
		wantErr error
	}{
		{
			name: "staged tree missing",
			mutate: func(t *testing.T, env *environment, _ *Options) {
				t.Helper()
				require.NoError(t, os.RemoveAll(filepath.Join(env.stagedDir, release.LinuxDir)))
			},
			wantErr: ErrStagedTreeMissing,
		},
		{
			name: "manifest missing",
			mutate: func(t *testing.T, env *environment, _ *Options) {
				t.Helper()
				require.NoError(t, os.Remove(filepath.Join(env.stagedDir, repository.Filename)))
			},
			wantErr: repository.ErrNotFound,
		},
		{
			name: "windows is planned",
			mutate: func(_ *testing.T, _ *environment, opts *Options) {
				opts.OS = "windows"
			},
			wantErr: platform.ErrWorkInProgress,
		},
		{
			name: "freebsd is unsupported",
			mutate: func(_ *testing.T, _ *environment, opts *Options) {
				opts.OS = "freebsd"
			},
			wantErr: platform.ErrUnsupportedOS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newEnvironment(t, "1.0.0")
			runner := new(commontest.Runner)
			opts := env.options(runner)
			tt.mutate(t, env, opts)

			err := Run(context.Background(), opts)
			require.ErrorIs(t, err, tt.wantErr)
			require.Empty(t, runner.Commands())
			require.NoDirExists(t, env.installDir)
		})
	}
}

// TestCompare classifies version changes.
func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		installed string
		incoming  string
		want      Change
	}{
		{"1.0.0", "1.0.0", Reinstall},
		{"1.0.0", "1.2.0", Upgrade},
		{"v2.0.0", "1.9.9", Downgrade},
		{"1.0", "1.0.0", Reinstall},
		{"nightly", "1.0.0", Replace},
		{"1.0.0-rc.1", "1.0.0", Upgrade},
	}

	for _, tt := range tests {
		t.Run(tt.installed+"->"+tt.incoming, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, Compare(tt.installed, tt.incoming))
		})
	}
}

// TestMatchesExecutable accounts for truncated process names.
func TestMatchesExecutable(t *testing.T) {
	t.Parallel()

	require.True(t, matchesExecutable("demo", "demo"))
	require.True(t, matchesExecutable("averyverylongex", "averyverylongexecutable"))
	require.False(t, matchesExecutable("demo", "demo2"))
	require.False(t, matchesExecutable("averyverylong", "averyverylongexecutable"))
}

// TestUninstall runs the generated script.
func TestUninstall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, release.UninstallScript), "#!/bin/sh\n", 0o755)

	runner := new(commontest.Runner)
	require.NoError(t, Uninstall(context.Background(), &UninstallOptions{InstallDir: dir, Runner: runner}))
	require.Equal(t, []string{"sh " + filepath.Join(dir, release.UninstallScript)}, runner.Commands())
}

// TestUninstall_NotInstalled reports a directory without an installation.
func TestUninstall_NotInstalled(t *testing.T) {
	t.Parallel()

	runner := new(commontest.Runner)
	err := Uninstall(context.Background(), &UninstallOptions{InstallDir: t.TempDir(), Runner: runner})
	require.ErrorIs(t, err, ErrNotInstalled)
	require.Empty(t, runner.Commands())
}
