// Package ui renders CLI output: styled when stdout is a terminal,
// plain when redirected or when color is disabled.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Single-accent palette.
const (
	colorGreen  = "42"
	colorYellow = "220"
	colorRed    = "196"
	colorGray   = "245"
	colorWhite  = "255"
)

// Styles holds the render styles for one output stream.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

func styled() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

func plain() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
	}
}

// Printer writes formatted status lines to one stream.
type Printer struct {
	w      io.Writer
	styles Styles
}

// NewPrinter creates a Printer. Color is enabled only when w is a
// terminal and noColor is false.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	useColor := !noColor
	if f, ok := w.(*os.File); ok {
		useColor = useColor && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	} else {
		useColor = false
	}

	s := plain()
	if useColor {
		s = styled()
	}
	return &Printer{w: w, styles: s}
}

// Header prints a bold section header.
func (p *Printer) Header(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Header.Render(fmt.Sprintf(format, args...)))
}

// Success prints a passing line with a check mark.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Success.Render("✓ ")+fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Warning.Render("! ")+fmt.Sprintf(format, args...))
}

// Fail prints a failing line with a cross.
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Error.Render("✗ ")+fmt.Sprintf(format, args...))
}

// Info prints a dim informational line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.Dim.Render(fmt.Sprintf(format, args...)))
}

// Line prints an unstyled line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}
