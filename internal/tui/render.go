package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders finalized assistant messages for the terminal.
// Renderers are cached per width since building one parses a style sheet.
type MarkdownRenderer struct {
	style     string
	width     int
	renderer  *glamour.TermRenderer
	available bool
}

// NewMarkdownRenderer creates a renderer using a glamour standard style
// ("dark", "light", "notty", ...). An empty style picks "dark".
func NewMarkdownRenderer(style string) *MarkdownRenderer {
	if style == "" {
		style = "dark"
	}
	return &MarkdownRenderer{style: style}
}

// Render renders md wrapped to width. On any renderer failure the raw
// Markdown is returned, which is still readable.
func (r *MarkdownRenderer) Render(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		r.renderer, r.width, r.available = tr, width, err == nil
	}
	if !r.available {
		return md
	}
	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
