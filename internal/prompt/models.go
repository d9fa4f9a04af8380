package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// confirmModel waits for y or n.
type confirmModel struct {
	question  string
	answer    bool
	done      bool
	cancelled bool
}

func newConfirmModel(question string) confirmModel {
	return confirmModel{question: question}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

//nolint:ireturn // Required by tea.Model.
func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "y", "Y":
		m.answer, m.done = true, true
		return m, tea.Quit
	case "n", "N":
		m.answer, m.done = false, true
		return m, tea.Quit
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	}

	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		answer := "n"
		if m.answer {
			answer = "y"
		}

		return questionStyle.Render(m.question) + " " + answer + "\n"
	}

	return questionStyle.Render(m.question) + hintStyle.Render(" (y/n): ")
}

// inputModel reads one line of text.
type inputModel struct {
	question  string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(question, placeholder string) inputModel {
	input := textinput.New()
	input.Placeholder = placeholder
	input.Focus()

	return inputModel{
		question: question,
		input:    input,
	}
}

func (m inputModel) value() string {
	return strings.TrimSpace(m.input.Value())
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

//nolint:ireturn // Required by tea.Model.
func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		return questionStyle.Render(m.question) + " " + m.value() + "\n"
	}

	return questionStyle.Render(m.question) + "\n" + m.input.View() + "\n" +
		hintStyle.Render("enter to confirm, esc to cancel")
}

// chooseModel selects one option from a numbered list.
type chooseModel struct {
	title     string
	options   []string
	cursor    int
	done      bool
	cancelled bool
}

func newChooseModel(title string, options []string) chooseModel {
	return chooseModel{
		title:   title,
		options: options,
	}
}

func (m chooseModel) Init() tea.Cmd {
	return nil
}

//nolint:ireturn // Required by tea.Model.
func (m chooseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch s := key.String(); s {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	default:
		// Options are numbered from 1 like the menu shows them.
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(m.options) {
			m.cursor = n - 1
			m.done = true

			return m, tea.Quit
		}
	}

	return m, nil
}

func (m chooseModel) View() string {
	var b strings.Builder

	b.WriteString(questionStyle.Render(m.title))
	b.WriteString("\n")

	for i, option := range m.options {
		line := fmt.Sprintf("[%d] %s", i+1, option)

		switch {
		case i == m.cursor && !m.done:
			b.WriteString(selectedStyle.Render("> " + line))
		case i == m.cursor:
			b.WriteString(selectedStyle.Render("  " + line))
		default:
			b.WriteString("  " + line)
		}

		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString(hintStyle.Render("select an option: number, arrows + enter, esc to exit"))
	}

	return b.String()
}
