// Package tui provides terminal output and input helpers for the CLI.
//
// DESIGN: Colors are emitted only when the writer is a terminal, so piped
// output (e.g. `bedrock-provider invoke ... | jq`) stays clean. Prompt text
// is read from the terminal line by line, or from the whole of stdin when it
// is piped.
package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// =============================================================================
// COLORS
// =============================================================================

const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorGreen  = "\033[0;32m"
	ColorBlue   = "\033[0;34m"
	ColorCyan   = "\033[0;36m"
	ColorYellow = "\033[1;33m"
	ColorRed    = "\033[0;31m"
)

// MaxPromptBytes caps prompt text read from stdin.
const MaxPromptBytes = 1 << 20

// ErrEmptyPrompt is returned when no prompt text was entered.
var ErrEmptyPrompt = errors.New("prompt is empty")

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// CONSOLE
// =============================================================================

// Console writes status lines, colored when the output is a terminal.
type Console struct {
	out   io.Writer
	color bool
}

// NewConsole wraps out. Color is enabled when out is a terminal file.
func NewConsole(out io.Writer) *Console {
	c := &Console{out: out}
	if f, ok := out.(*os.File); ok {
		c.color = IsTerminal(f)
	}
	return c
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer { return c.out }

func (c *Console) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + ColorReset
}

// Header prints a section title.
func (c *Console) Header(title string) {
	fmt.Fprintf(c.out, "\n%s\n%s\n", c.paint(ColorBold+ColorCyan, title), c.paint(ColorDim, strings.Repeat("─", 50)))
}

// Success prints a message with a green [OK] prefix.
func (c *Console) Success(msg string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(ColorGreen, "[OK]"), msg)
}

// Info prints a message with a blue [INFO] prefix.
func (c *Console) Info(msg string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(ColorBlue, "[INFO]"), msg)
}

// Warn prints a message with a yellow [WARN] prefix.
func (c *Console) Warn(msg string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(ColorYellow, "[WARN]"), msg)
}

// Error prints a message with a red [ERROR] prefix.
func (c *Console) Error(msg string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(ColorRed, "[ERROR]"), msg)
}

// Field prints an aligned "label: value" line.
func (c *Console) Field(label, value string) {
	fmt.Fprintf(c.out, "  %-20s %s\n", c.paint(ColorDim, label+":"), value)
}

// =============================================================================
// PROMPTS
// =============================================================================

// ReadPrompt reads prompt text from in. On a terminal it shows label and
// reads one line; otherwise it reads everything up to MaxPromptBytes.
func ReadPrompt(in *os.File, out io.Writer, label string) (string, error) {
	if IsTerminal(in) {
		fmt.Fprint(out, label)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		return nonEmpty(line)
	}
	return ReadAll(in)
}

// ReadAll reads piped prompt text from r.
func ReadAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPromptBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	if len(data) > MaxPromptBytes {
		return "", fmt.Errorf("prompt exceeds %d bytes", MaxPromptBytes)
	}
	return nonEmpty(string(data))
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyPrompt
	}
	return s, nil
}
