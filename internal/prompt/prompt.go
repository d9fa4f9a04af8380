package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Prompter asks the operator questions.
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string) (bool, error)
	// Input asks for a line of text. An empty answer is returned as "".
	Input(ctx context.Context, question, placeholder string) (string, error)
	// Choose returns the index of the selected option.
	Choose(ctx context.Context, title string, options []string) (int, error)
}

var (
	// ErrCancelled is returned when the operator aborts a question.
	ErrCancelled = errors.New("prompt cancelled")
	// ErrNoChoice is returned by Defaults.Choose: a menu has no default answer.
	ErrNoChoice = errors.New("no choice available without an interactive terminal")
	// errNoOptions is returned when Choose gets nothing to choose from.
	errNoOptions = errors.New("no options to choose from")
)

//nolint:gochecknoglobals // Shared read-only styles.
var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77")).Bold(true)
)

// TUI asks questions on a terminal.
type TUI struct {
	in  io.Reader
	out io.Writer
}

// NewTUI returns a prompter reading in and rendering to out.
// Nil streams fall back to the process stdin and stdout.
func NewTUI(in io.Reader, out io.Writer) *TUI {
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	return &TUI{in: in, out: out}
}

// Confirm implements Prompter.
func (p *TUI) Confirm(ctx context.Context, question string) (bool, error) {
	m, err := p.run(ctx, newConfirmModel(question))
	if err != nil {
		return false, err
	}

	result, _ := m.(confirmModel)
	if result.cancelled {
		return false, ErrCancelled
	}

	return result.answer, nil
}

// Input implements Prompter.
func (p *TUI) Input(ctx context.Context, question, placeholder string) (string, error) {
	m, err := p.run(ctx, newInputModel(question, placeholder))
	if err != nil {
		return "", err
	}

	result, _ := m.(inputModel)
	if result.cancelled {
		return "", ErrCancelled
	}

	return result.value(), nil
}

// Choose implements Prompter.
func (p *TUI) Choose(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errNoOptions
	}

	m, err := p.run(ctx, newChooseModel(title, options))
	if err != nil {
		return 0, err
	}

	result, _ := m.(chooseModel)
	if result.cancelled {
		return 0, ErrCancelled
	}

	return result.cursor, nil
}

//nolint:ireturn // tea.Program returns the final model as tea.Model.
func (p *TUI) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	program := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)

	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, ErrCancelled
		}

		return nil, err
	}

	return final, nil
}

// Defaults answers every question with its default.
type Defaults struct{}

// Confirm implements Prompter: defaults are never changed.
func (Defaults) Confirm(context.Context, string) (bool, error) {
	return false, nil
}

// Input implements Prompter: the empty answer selects the default.
func (Defaults) Input(context.Context, string, string) (string, error) {
	return "", nil
}

// Choose implements Prompter.
func (Defaults) Choose(context.Context, string, []string) (int, error) {
	return 0, ErrNoChoice
}

// ChangeDefault shows a default value and lets the operator replace it.
// Declining, or answering blank, keeps the default.
func ChangeDefault(ctx context.Context, p Prompter, what, defaultValue string) (string, error) {
	change, err := p.Confirm(ctx, fmt.Sprintf("The default %s is: %s\nDo you want to change it?", what, defaultValue))
	if err != nil {
		return "", err
	}

	if !change {
		return defaultValue, nil
	}

	value, err := p.Input(ctx, fmt.Sprintf("Enter a new %s (leave blank to go back to the default)", what), defaultValue)
	if err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return defaultValue, nil
	}

	return filepath.Clean(value), nil
}
