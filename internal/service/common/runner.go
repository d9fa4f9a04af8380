//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is an external tool invocation.
type Command struct {
	// Dir is the working directory; the current one when empty.
	Dir string
	// Name is the executable name or path.
	Name string
	// Args are passed verbatim.
	Args []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external tools. Every call blocks until the tool exits.
type Runner interface {
	// Run streams the tool output to the terminal.
	Run(ctx context.Context, cmd Command) error
	// Output captures and returns the tool's standard output.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ErrCommandFailed matches every *ExitError.
var ErrCommandFailed = errors.New("command failed")

// ExitError reports a tool that ran and exited with a non-zero status.
type ExitError struct {
	// Command is the failed invocation.
	Command Command
	// Code is the exit status.
	Code int
	// Stderr holds captured diagnostics, if any.
	Stderr string
}

// Error implements error.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}

	return msg
}

// Is makes errors.Is(err, ErrCommandFailed) hold for exit errors.
func (e *ExitError) Is(target error) bool {
	return target == ErrCommandFailed
}

// ExitCode returns the exit status carried by err, or -1.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return -1
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	// Stdout receives the output of Run; os.Stdout when nil.
	Stdout io.Writer
	// Stderr receives diagnostics; os.Stderr when nil.
	Stderr io.Writer
}

// NewExecRunner returns a runner attached to the process terminal.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // Tools are chosen by the build scripts.
	c.Dir = cmd.Dir
	c.Stdout = writerOr(r.Stdout, os.Stdout)
	c.Stderr = writerOr(r.Stderr, os.Stderr)

	return wrapExecError(cmd, c.Run(), "")
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	var stderr bytes.Buffer

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // Tools are chosen by the build scripts.
	c.Dir = cmd.Dir
	c.Stderr = &stderr

	out, err := c.Output()

	return out, wrapExecError(cmd, err, strings.TrimSpace(stderr.String()))
}

func wrapExecError(cmd Command, err error, stderr string) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Command: cmd,
			Code:    exitErr.ExitCode(),
			Stderr:  stderr,
		}
	}

	return fmt.Errorf("run %s: %w", cmd, err)
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}

	return w
}
