package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns Markdown text into terminal output.
type Renderer interface {
	Render(text string) string
}

// PlainRenderer returns text unchanged. It is used when stdout is not a
// terminal or styling is disabled.
type PlainRenderer struct{}

// Render implements Renderer.
func (PlainRenderer) Render(text string) string {
	return text
}

// MarkdownRenderer styles Markdown with glamour's dark theme.
type MarkdownRenderer struct {
	tr *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer that wraps at width columns.
func NewMarkdownRenderer(width int) (*MarkdownRenderer, error) {
	if width <= 0 {
		width = 80
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &MarkdownRenderer{tr: tr}, nil
}

// Render implements Renderer. Text that glamour cannot render is returned as
// is.
func (r *MarkdownRenderer) Render(text string) string {
	out, err := r.tr.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// NewRenderer picks the renderer for the current invocation: styled Markdown
// when stdout is a terminal and plain is false, passthrough otherwise.
func NewRenderer(plain bool) Renderer {
	if plain || !IsStdoutTTY() {
		return PlainRenderer{}
	}
	r, err := NewMarkdownRenderer(min(GetTerminalWidth(), MaxReportWidth))
	if err != nil {
		return PlainRenderer{}
	}
	return r
}
