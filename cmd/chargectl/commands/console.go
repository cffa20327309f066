package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// console renders one-line status messages. Colours are dropped automatically
// when the writer is not a terminal.
type console struct {
	out    io.Writer
	errOut io.Writer

	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	note    lipgloss.Style
	info    lipgloss.Style
}

func newConsole(out, errOut io.Writer) *console {
	outRenderer := lipgloss.NewRenderer(out)
	errRenderer := lipgloss.NewRenderer(errOut)

	return &console{
		out:     out,
		errOut:  errOut,
		success: outRenderer.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		failure: errRenderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warning: outRenderer.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		note:    outRenderer.NewStyle().Foreground(lipgloss.Color("3")),
		info:    outRenderer.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

func (c *console) Success(format string, args ...any) {
	c.line(c.out, c.success, "[OK]", format, args...)
}

// Error writes to the error stream.
func (c *console) Error(format string, args ...any) {
	c.line(c.errOut, c.failure, "[ERROR]", format, args...)
}

// Missing reports an expected absence. It goes to stdout because it is a
// result, not a failure of the command.
func (c *console) Missing(format string, args ...any) {
	c.line(c.out, c.warning, "[MISSING]", format, args...)
}

func (c *console) Warning(format string, args ...any) {
	c.line(c.out, c.warning, "[WARNING]", format, args...)
}

func (c *console) Note(format string, args ...any) {
	c.line(c.out, c.note, "! [NOTE]", format, args...)
}

func (c *console) Info(format string, args ...any) {
	c.line(c.out, c.info, "[INFO]", format, args...)
}

func (c *console) line(w io.Writer, style lipgloss.Style, label, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", style.Render(label), fmt.Sprintf(format, args...))
}

// mask hides all but a short prefix of a secret.
func mask(value string) string {
	const visible = 4
	if len(value) <= 2*visible {
		return strings.Repeat("*", len(value))
	}
	return value[:visible] + strings.Repeat("*", 8)
}
