package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user aborts a widget with Esc/Ctrl-C.
var ErrCancelled = errors.New("cancelled")

type inputConfig struct {
	placeholder string
	masked      bool
	required    bool
}

// InputOption tunes GetInput.
type InputOption func(*inputConfig)

// Placeholder sets the greyed-out hint shown while the field is empty.
func Placeholder(text string) InputOption {
	return func(c *inputConfig) { c.placeholder = text }
}

// Masked hides the typed characters.
func Masked() InputOption {
	return func(c *inputConfig) { c.masked = true }
}

// Required keeps the widget open until something other than blanks is typed.
func Required() InputOption {
	return func(c *inputConfig) { c.required = true }
}

// GetInput shows a single-line text input on stderr and returns the
// trimmed value.
func GetInput(prompt string, opts ...InputOption) (string, error) {
	var cfg inputConfig
	for _, o := range opts {
		o(&cfg)
	}

	ti := textinput.New()
	ti.Placeholder = cfg.placeholder
	ti.Focus()
	ti.CharLimit = 128
	ti.Width = 48
	if cfg.masked {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}

	final, err := tea.NewProgram(inputModel{
		textInput: ti,
		prompt:    prompt,
		required:  cfg.required,
	}, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", err
	}

	m, ok := final.(inputModel)
	if !ok || !m.complete {
		return "", ErrCancelled
	}
	return strings.TrimSpace(m.textInput.Value()), nil
}

type inputModel struct {
	textInput textinput.Model
	prompt    string
	required  bool
	empty     bool
	complete  bool
	quitting  bool
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.required && strings.TrimSpace(m.textInput.Value()) == "" {
				m.empty = true
				return m, nil
			}
			m.complete = true
			return m, tea.Quit
		}
		m.empty = false
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	switch {
	case m.complete:
		return ""
	case m.quitting:
		return quitTextStyle.Render("Cancelled.")
	}

	view := fmt.Sprintf("\n%s\n\n%s\n", titleStyle.Render(m.prompt), m.textInput.View())
	if m.empty {
		view += textStyle.Render("A value is required. Press Esc to cancel.") + "\n"
	}
	return view + "\n"
}
