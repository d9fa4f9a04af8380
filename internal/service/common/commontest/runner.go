// Package commontest provides test doubles for the shared service helpers.
package commontest

import (
	"context"
	"sync"

	"github.com/oshokin/app-installer/internal/service/common"
)

// Runner records every command and answers with Handler.
type Runner struct {
	// Handler produces the output and error of a command; nil means success with no output.
	Handler func(cmd common.Command) ([]byte, error)

	mu       sync.Mutex
	commands []common.Command
}

// Run implements common.Runner.
func (r *Runner) Run(ctx context.Context, cmd common.Command) error {
	_, err := r.Output(ctx, cmd)
	return err
}

// Output implements common.Runner.
func (r *Runner) Output(ctx context.Context, cmd common.Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Handler == nil {
		return nil, nil
	}

	return r.Handler(cmd)
}

// Commands returns the recorded command lines in call order.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(r.commands))
	for _, cmd := range r.commands {
		lines = append(lines, cmd.String())
	}

	return lines
}

// Calls returns the recorded commands in call order.
func (r *Runner) Calls() []common.Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]common.Command(nil), r.commands...)
}
