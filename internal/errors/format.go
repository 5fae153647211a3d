package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

func color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + colorReset
}

func red(text string) string  { return color(colorRed, text) }
func blue(text string) string { return color(colorBlue, text) }
func cyan(text string) string { return color(colorCyan, text) }
func gray(text string) string { return color(colorGray, text) }
func bold(text string) string { return color(colorBold, text) }

// contextLines is how many lines of Source are shown on each side of the
// offending one.
const contextLines = 1

// Format renders the error for a terminal. Errors carrying Source and a line
// number show the surrounding lines of the file with the offending one
// marked.
func (e *BlueprintError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(red(bold("ERROR ")))
	if e.Code != "" {
		b.WriteString(bold(e.Code + ": "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Location != nil {
		b.WriteString("  ")
		b.WriteString(cyan(e.Location.String()))
		b.WriteString("\n")
		if snippet := sourceSnippet(e.Source, e.Location.Line); snippet != "" {
			b.WriteString(snippet)
		}
		b.WriteString("\n")
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(gray("Caused by: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.DocURL != "" {
		b.WriteString("  ")
		b.WriteString(gray("Learn more: "))
		b.WriteString(blue(e.DocURL))
		b.WriteString("\n")
	}

	return b.String()
}

// sourceSnippet renders the lines of src around line (1-based) with a line
// number gutter. The offending line is prefixed with ">". It returns "" when
// line is outside src.
func sourceSnippet(src string, line int) string {
	if src == "" || line < 1 {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(src, "\n"), "\n")
	if line > len(lines) {
		return ""
	}

	first := max(line-contextLines, 1)
	last := min(line+contextLines, len(lines))
	width := len(fmt.Sprint(last))

	var b strings.Builder
	b.WriteString("\n")
	for n := first; n <= last; n++ {
		marker := "  "
		if n == line {
			marker = red("> ")
		}
		fmt.Fprintf(&b, "  %s%s %s %s\n",
			marker, gray(fmt.Sprintf("%*d", width, n)), gray("|"), lines[n-1])
	}
	return b.String()
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	var be *BlueprintError
	if stderrors.As(err, &be) {
		fmt.Fprint(os.Stderr, be.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\n%s %s\n\n", red(bold("ERROR:")), err.Error())
}
