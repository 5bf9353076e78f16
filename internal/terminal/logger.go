package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// Style represents a log message style.
type Style string

const (
	StyleInfo    Style = "info"
	StyleSuccess Style = "success"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleDim     Style = "dim"
	StylePhase   Style = "phase"
)

var styleSymbols = map[Style]string{
	StyleInfo:    "I",
	StyleSuccess: "✓",
	StyleWarning: "W",
	StyleError:   "!",
	StyleDim:     "·",
	StylePhase:   "▸",
}

// Logger prints styled status lines for the operator.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	isTTY bool
}

// NewLogger creates a logger writing to stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{
		out:   w,
		isTTY: IsWriterTTY(w),
	}
}

func (l *Logger) writer() io.Writer {
	if l.out == nil {
		return os.Stderr
	}
	return l.out
}

// Log prints a styled log message.
func (l *Logger) Log(msg string, style Style) {
	styleColor := Cyan
	switch style {
	case StyleSuccess:
		styleColor = Green
	case StyleWarning:
		styleColor = Yellow
	case StyleError:
		styleColor = Red
	case StyleDim:
		styleColor = Dim
	case StylePhase:
		styleColor = Magenta + Bold
	}

	symbol, ok := styleSymbols[style]
	if !ok {
		symbol = styleSymbols[StyleInfo]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.writer()
	if l.isTTY {
		fmt.Fprint(w, "\r"+ansi.EraseEntireLine)
	}

	tag := fmt.Sprintf("%s[%s%sautose%s%s]%s",
		Color(Dim), Color(Reset), Color(styleColor), Color(Reset), Color(Dim), Color(Reset))
	fmt.Fprintf(w, "%s %s%s%s %s\n", tag, Color(styleColor), symbol, Color(Reset), msg)
}

// Logf prints a formatted styled log message.
func (l *Logger) Logf(style Style, format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...), style)
}

// Lines prints each line of a multi-line message with the same style.
func (l *Logger) Lines(msg string, style Style) {
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		l.Log(line, style)
	}
}
