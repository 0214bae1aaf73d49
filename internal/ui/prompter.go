package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// ErrInputClosed is returned once stdin reaches EOF.
var ErrInputClosed = errors.New("input closed")

// Prompter reads line-oriented answers for the numbered menus. On a real
// terminal it also uses the bubbletea widgets for secrets and spinners.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter returns a plain line prompter, as used by tests and pipes.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// NewTerminalPrompter binds to stdin/stdout and enables the widgets when
// both are terminals.
func NewTerminalPrompter() *Prompter {
	p := NewPrompter(os.Stdin, os.Stdout)
	p.interactive = term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	return p
}

// Interactive reports whether both ends are a terminal.
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Printf writes formatted text to the output.
func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes a line to the output.
func (p *Prompter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

// Title prints a highlighted menu heading.
func (p *Prompter) Title(text string) {
	color.New(color.FgCyan, color.Bold).Fprintf(p.out, "\n%s\n", text)
}

// ReadLine prints prompt and returns the trimmed answer.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return "", ErrInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret reads a value that should not be echoed.
func (p *Prompter) ReadSecret(prompt string) (string, error) {
	if !p.interactive {
		return p.ReadLine(prompt)
	}
	return GetInput(strings.TrimSuffix(strings.TrimSpace(prompt), ":"), Masked())
}

// ReadInt keeps asking until the answer is an integer in [lo, hi].
func (p *Prompter) ReadInt(prompt string, lo, hi int) (int, error) {
	for {
		line, err := p.ReadLine(prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(p.out, "Invalid input. Please enter an integer between %d and %d.\n", lo, hi)
			continue
		}
		if n < lo || n > hi {
			fmt.Fprintf(p.out, "Invalid option. Please choose a number between %d and %d.\n", lo, hi)
			continue
		}
		return n, nil
	}
}

// Menu prints a numbered list of options and returns the 1-based choice.
func (p *Prompter) Menu(title string, options []string) (int, error) {
	p.Title(title)
	for i, opt := range options {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, opt)
	}
	return p.ReadInt(fmt.Sprintf("Which number would you like to select (1-%d): ", len(options)), 1, len(options))
}

// SelectIndex asks for an item number between 1 and n, with 0 meaning
// cancel.
func (p *Prompter) SelectIndex(prompt string, n int) (int, error) {
	return p.ReadInt(fmt.Sprintf("%s (1-%d, or 0 to cancel): ", prompt, n), 0, n)
}

// Confirm asks a y/n question. Only "y" or "yes" confirms; anything else
// is treated as a refusal.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.ReadLine(prompt + " (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		fmt.Fprintln(p.out, "Invalid input. Please enter 'y' for yes or 'n' for no.")
		return false, nil
	}
}

// Busy runs task, showing a spinner on a terminal. The context passed to
// task is cancelled if the user presses Ctrl-C while it runs.
func Busy[T any](ctx context.Context, p *Prompter, text string, task func(context.Context) (T, error)) (T, error) {
	if !p.interactive {
		fmt.Fprintln(p.out, text)
		return task(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res, err := Spin(text, cancel, func() (any, error) {
		return task(ctx)
	})
	v, _ := res.(T)
	return v, err
}
