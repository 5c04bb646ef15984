// Package banner prints the bordered multi-line success/failure report
// the producer, CI runner, and ctl processes show at the end of a run.
// It is the only user-visible surface; structured logging (pkg/log) is
// for operators.
package banner

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const width = 60

// Success prints a bordered banner reporting a successful operation.
func Success(title string, lines ...string) {
	Fprint(os.Stdout, title, lines)
}

// Failure prints a bordered banner reporting a failed operation, then
// the caller is responsible for exiting with status 1.
func Failure(title string, err error) {
	Fprint(os.Stderr, title, []string{err.Error()})
}

// Fprint writes the bordered box to w, with the title set into the top
// border.
func Fprint(w io.Writer, title string, lines []string) {
	border := strings.Repeat("─", width)
	n := width - 3 - len(title)
	if n < 0 {
		n = 0
	}
	fmt.Fprintf(w, "┌─ %s %s┐\n", title, strings.Repeat("─", n))
	if len(lines) > 0 {
		fmt.Fprintf(w, "├%s┤\n", border)
		for _, line := range lines {
			for _, wrapped := range wrap(line, width-2) {
				fmt.Fprintf(w, "│ %s%s│\n", wrapped, pad(wrapped))
			}
		}
	}
	fmt.Fprintf(w, "└%s┘\n", border)
}

func pad(s string) string {
	n := width - 1 - len(s)
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", n)
}

func wrap(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var out []string
	for len(s) > max {
		out = append(out, s[:max])
		s = s[max:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
