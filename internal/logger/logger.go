// Package logger provides leveled diagnostic logging for autose.
//
// User-facing status lines go through terminal.Logger. This package is for
// debug output (requests, stream events, retries) that is silent unless the
// level is lowered with --verbose or AUTOSE_LOG_LEVEL.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level names accepted in config and env.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Levels lists the accepted level names.
var Levels = []string{DebugLevel, InfoLevel, WarnLevel, ErrorLevel}

type ctxKey struct{}

var discard = charmlog.New(io.Discard)

// Config configures a diagnostic logger.
type Config struct {
	Level  string
	Output io.Writer
}

// New builds a charm logger from cfg. A nil cfg logs warnings to stderr.
func New(cfg *Config) *charmlog.Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		Prefix:          "autose",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(cfg.Level),
	})
	return l
}

// ParseLevel maps a level name to a charm level. Unknown or empty names map
// to warn so that normal runs stay quiet.
func ParseLevel(name string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.WarnLevel
	}
}

// ContextWithLogger returns a copy of ctx carrying l.
func ContextWithLogger(ctx context.Context, l *charmlog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a logger that discards
// everything.
func FromContext(ctx context.Context) *charmlog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*charmlog.Logger); ok && l != nil {
			return l
		}
	}
	return discard
}
