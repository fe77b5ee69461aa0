// Package ui renders LoreBook's terminal views. Every render function is a
// pure function of an app.Snapshot and a Styles value.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Parchment and ink for light terminals, night sky and
// gold leaf for dark ones.
var (
	// Light Mode Colors
	LightBackground = lipgloss.Color("#faf7f0")
	LightForeground = lipgloss.Color("#2b2337")
	LightPrimary    = lipgloss.Color("#5b3f8c")
	LightAccent     = lipgloss.Color("#b8860b")
	LightSecondary  = lipgloss.Color("#efe9dc")
	LightMuted      = lipgloss.Color("#8a8298")
	LightBorder     = lipgloss.Color("#d8cfbd")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#15121e")
	DarkForeground = lipgloss.Color("#ece8f5")
	DarkPrimary    = lipgloss.Color("#f5c542")
	DarkAccent     = lipgloss.Color("#f5c542")
	DarkSecondary  = lipgloss.Color("#2a2438")
	DarkMuted      = lipgloss.Color("#8b82a3")
	DarkBorder     = lipgloss.Color("#3b3350")
	DarkCard       = lipgloss.Color("#211c2e")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#7cb342")
	Warning     = lipgloss.Color("#ffc107")
	Info        = lipgloss.Color("#42a5f5")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// ThemeFor resolves a ui.theme setting: "light", "dark", or anything else
// for detection.
func ThemeFor(pref string) Theme {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	}
	return DetectTheme()
}

// DetectTheme guesses the terminal background from COLORFGBG, then
// LOREBOOK_DARK_MODE. LoreBook defaults to dark.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// "foreground;background"
		parts := strings.Split(colorTerm, ";")
		if bgIdx, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
				return DarkTheme()
			}
			return LightTheme()
		}
	}
	if os.Getenv("LOREBOOK_DARK_MODE") == "0" {
		return LightTheme()
	}
	return DarkTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	App     lipgloss.Style
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style
	Sidebar lipgloss.Style

	// Navigation
	NavItem   lipgloss.Style
	NavActive lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Quote    lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Components
	Card         lipgloss.Style
	CardSelected lipgloss.Style
	Stat         lipgloss.Style
	Badge        lipgloss.Style
	Trait        lipgloss.Style
	Modal        lipgloss.Style
	Label        lipgloss.Style
	Button       lipgloss.Style
	ButtonMuted  lipgloss.Style
	Spinner      lipgloss.Style
	Divider      lipgloss.Style
	KeyHint      lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	onAccent := lipgloss.Color("#15121e")
	return Styles{
		Theme: theme,

		App: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Header: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		Sidebar: lipgloss.NewStyle().
			Width(22).
			Padding(1, 1).
			BorderRight(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(theme.Border),

		NavItem: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		NavActive: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Background(theme.Secondary).
			Bold(true).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true).
			MarginBottom(1),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Quote: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Italic(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Card: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		CardSelected: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		Stat: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Badge: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Trait: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Background(theme.Secondary).
			Padding(0, 1),

		Modal: lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Accent),

		Label: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Button: lipgloss.NewStyle().
			Foreground(onAccent).
			Background(theme.Accent).
			Bold(true).
			Padding(0, 2),

		ButtonMuted: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Secondary).
			Padding(0, 2),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		KeyHint: lipgloss.NewStyle().
			Foreground(theme.Accent),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Logo returns the LoreBook wordmark.
func Logo(s Styles) string {
	return s.Header.Render("✒ LoreBook")
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
