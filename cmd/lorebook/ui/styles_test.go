package ui

import (
	"strings"
	"testing"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("LOREBOOK_DARK_MODE", "")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme by default")
	}

	t.Setenv("LOREBOOK_DARK_MODE", "0")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when LOREBOOK_DARK_MODE=0")
	}

	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for a white background")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}
}

func TestThemeFor(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("LOREBOOK_DARK_MODE", "0")

	if !ThemeFor("dark").IsDark {
		t.Fatalf("dark preference ignored")
	}
	if ThemeFor(" Light ").IsDark {
		t.Fatalf("light preference ignored")
	}
	if ThemeFor("auto").IsDark {
		t.Fatalf("auto should fall back to detection")
	}
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(DarkTheme())
	if got := s.RenderDivider(5); !strings.Contains(got, "─────") {
		t.Fatalf("divider = %q", got)
	}
	if got := s.RenderDivider(0); !strings.Contains(got, "─") {
		t.Fatalf("divider should be at least one cell, got %q", got)
	}
}

func TestMarkdownPlainFallback(t *testing.T) {
	md := PlainMarkdown()
	if got := md.Render("   ", 40); got != "" {
		t.Fatalf("blank text rendered as %q", got)
	}
	if got := md.Render("A quiet harbor town.", 40); !strings.Contains(got, "A quiet harbor town.") {
		t.Fatalf("plain render = %q", got)
	}

	var nilMD *Markdown
	if got := nilMD.Render("still works", 40); !strings.Contains(got, "still works") {
		t.Fatalf("nil renderer = %q", got)
	}
}

func TestMarkdownGlamour(t *testing.T) {
	md := NewMarkdown(DarkTheme())
	got := md.Render("A **bold** claim.", 60)
	if !strings.Contains(got, "bold") || strings.Contains(got, "**") {
		t.Fatalf("glamour render = %q", got)
	}
	if len(md.renderers) != 1 {
		t.Fatalf("expected one cached renderer, got %d", len(md.renderers))
	}
	md.Render("again", 60)
	if len(md.renderers) != 1 {
		t.Fatalf("renderer for the same width should be reused")
	}
}

func TestMarkdownCacheStats(t *testing.T) {
	md := NewMarkdown(DarkTheme())
	first := md.Render("The *ember* keep.", 40)
	second := md.Render("The *ember* keep.", 40)
	if first != second {
		t.Fatalf("cached render differs: %q vs %q", first, second)
	}
	if hits, misses := md.CacheStats(); hits != 1 || misses != 1 {
		t.Fatalf("stats = %d hits, %d misses", hits, misses)
	}
	if hits, misses := PlainMarkdown().CacheStats(); hits != 0 || misses != 0 {
		t.Fatalf("plain renderer has no cache, got %d/%d", hits, misses)
	}
}
