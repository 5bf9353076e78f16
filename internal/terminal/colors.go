// Package terminal provides terminal output: colors, styled status lines, the
// progress indicator and the Markdown renderer.
package terminal

import (
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// SGR sequences used by the logger and the spinner.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

const fallbackWidth = 80

// colorsOff is inverted so the zero value means colors are on.
var colorsOff atomic.Bool

func init() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		colorsOff.Store(true)
	}
}

// DisableColors turns off color output globally.
func DisableColors() { colorsOff.Store(true) }

// EnableColors turns on color output globally.
func EnableColors() { colorsOff.Store(false) }

// ColorsEnabled reports whether Color returns escape sequences.
func ColorsEnabled() bool { return !colorsOff.Load() }

// Color returns seq while colors are enabled and "" otherwise.
func Color(seq string) string {
	if colorsOff.Load() {
		return ""
	}
	return seq
}

// fdWriter is satisfied by *os.File and anything else backed by a descriptor.
type fdWriter interface {
	Fd() uintptr
}

// IsWriterTTY reports whether w is backed by a terminal.
func IsWriterTTY(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool { return IsWriterTTY(os.Stdout) }

// GetTerminalWidth returns the width of the terminal on stdout, or 80 when
// stdout is not a terminal.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackWidth
	}
	return width
}
