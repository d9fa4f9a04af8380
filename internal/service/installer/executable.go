package installer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/logger"
	"github.com/oshokin/app-installer/internal/service/common"
)

// procCommLength is the number of executable name bytes the Linux process table keeps.
const procCommLength = 15

// installExecutable replaces the installed executable atomically.
// The staged checksum, when the manifest has one, is verified before the swap.
func (i *installer) installExecutable(ctx context.Context) error {
	target := i.manifest.Target
	source := filepath.Join(i.linuxDir(), target)
	destination := filepath.Join(i.installDir, target)

	checksum, err := i.stagedChecksum(target)
	if err != nil {
		return err
	}

	if _, err = os.Stat(destination); os.IsNotExist(err) {
		var placeholder *os.File

		if placeholder, err = os.Create(filepath.Clean(destination)); err != nil {
			return fmt.Errorf("prepare %s: %w", destination, err)
		}

		_ = placeholder.Close()
	}

	data, err := os.Open(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("open staged executable: %w", err)
	}

	defer func() {
		_ = data.Close()
	}()

	options := goupdate.Options{
		TargetPath: destination,
		TargetMode: common.ExecutableMode,
		Checksum:   checksum,
		Hash:       common.ChecksumFunction,
	}

	logger.DebugKV(ctx, "Applying executable", "path", destination, "verified", checksum != nil)

	if err = goupdate.Apply(data, options); err != nil {
		return fmt.Errorf("install executable: %w", err)
	}

	return nil
}

// stagedChecksum returns the manifest checksum of the staged executable, or nil when none is recorded.
func (i *installer) stagedChecksum(target string) ([]byte, error) {
	encoded, ok := i.manifest.Files[path.Join(release.LinuxDir, target)]
	if !ok {
		return nil, nil
	}

	checksum, err := common.DecodeChecksum(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode checksum of %s: %w", target, err)
	}

	return checksum, nil
}

// terminateProcessesByName kills every other process running the named executable.
func terminateProcessesByName(name string) (int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return 0, err
	}

	thisProcessID := os.Getpid()
	killed := 0

	for _, process := range processList {
		if process.Pid() == thisProcessID || !matchesExecutable(process.Executable(), name) {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return killed, err
		}

		if err = runningProcess.Kill(); err != nil {
			return killed, err
		}

		killed++
	}

	return killed, nil
}

// matchesExecutable compares a process table name with an executable name,
// accounting for the truncation Linux applies to long names.
func matchesExecutable(processName, name string) bool {
	if processName == name {
		return true
	}

	return len(name) > procCommLength && processName == name[:procCommLength]
}
