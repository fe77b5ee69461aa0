package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Markdown renders descriptions through glamour, falling back to wrapped
// plain text when the renderer is unavailable or fails.
type Markdown struct {
	mu        sync.Mutex
	dark      bool
	renderers map[int]*glamour.TermRenderer
	disabled  bool
	cache     *RenderCache
}

// NewMarkdown creates a renderer for the theme.
func NewMarkdown(theme Theme) *Markdown {
	return &Markdown{
		dark:      theme.IsDark,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     NewRenderCache(256),
	}
}

// PlainMarkdown returns a renderer that never uses glamour.
func PlainMarkdown() *Markdown {
	return &Markdown{disabled: true}
}

// CacheStats reports how often rendered descriptions were reused.
func (m *Markdown) CacheStats() (hits, misses int) {
	if m == nil || m.cache == nil {
		return 0, 0
	}
	return m.cache.Stats()
}

// Render formats text to fit width columns.
func (m *Markdown) Render(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	if m == nil || m.disabled {
		return wrap(text, width)
	}

	return m.cache.GetOrCompute(ComputeKey(text, width), func() string {
		r := m.renderer(width)
		if r == nil {
			return wrap(text, width)
		}
		out, err := r.Render(text)
		if err != nil {
			return wrap(text, width)
		}
		return strings.Trim(out, "\n")
	})
}

func (m *Markdown) renderer(width int) *glamour.TermRenderer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.renderers[width]; ok {
		return r
	}
	style := "light"
	if m.dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	m.renderers[width] = r
	return r
}

func wrap(text string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(text)
}
