package webserver

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// MarkdownRenderer converts normalized answer text to HTML. Tables,
// strikethrough, task lists and autolinks are enabled; single newlines
// become <br>; raw HTML in the source is emitted as-is.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer creates the renderer
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithUnsafe(),
			),
		),
	}
}

// Render converts markdown to HTML safe to place in a template
func (m *MarkdownRenderer) Render(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
