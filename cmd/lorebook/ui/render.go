package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lorebook/internal/app"
	"lorebook/internal/lore"
)

// ModalInputs carries the rendered input widgets for the creation modal.
type ModalInputs struct {
	Fields map[app.Field]string
	Focus  app.Field
}

// AuthInputs carries the rendered input widgets for the auth screen.
type AuthInputs struct {
	Email    string
	Password string
	SignUp   bool
}

// Selectable returns the entities the current view lets the user select,
// in display order.
func Selectable(s app.Snapshot) []lore.Entity {
	switch s.View {
	case app.ViewCharacters:
		return s.Characters()
	case app.ViewPlaces:
		return s.Places()
	case app.ViewTimeline:
		return s.Timeline()
	}
	return nil
}

// ShortID truncates an id for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// Sidebar renders the navigation column.
func Sidebar(s app.Snapshot, st Styles) string {
	var b strings.Builder
	b.WriteString(Logo(st))
	b.WriteString("\n\n")
	for i, v := range app.Views {
		label := fmt.Sprintf("%d %s", i+1, v.Title())
		if v == s.View {
			b.WriteString(st.NavActive.Render("▸ " + label))
		} else {
			b.WriteString(st.NavItem.Render("  " + label))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if s.User.Email != "" {
		b.WriteString(st.Muted.Render(s.User.Email))
		b.WriteString("\n")
	}
	b.WriteString(st.Muted.Render("ctrl+l sign out"))
	b.WriteString("\n\n")
	b.WriteString(st.Muted.Render("Powered by Gemini"))
	return st.Sidebar.Render(b.String())
}

// Dashboard renders the counts overview.
func Dashboard(s app.Snapshot, st Styles) string {
	c := s.Counts()
	stat := func(title string, n int, caption string) string {
		body := st.Title.Render(title) + "\n" +
			st.Stat.Render(fmt.Sprintf("%d", n)) + "\n" +
			st.Muted.Render(caption)
		return st.Card.Width(24).Render(body)
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		stat("Characters", c.Characters, "Heroes and Villains."),
		" ",
		stat("Places", c.Places, "Locations discovered."),
		" ",
		stat("Timeline", c.Events, "Events logged."),
	)
	promo := st.Bold.Render("Build Your World with AI") + "\n" +
		st.Muted.Render("Use Magic Generate (ctrl+g) in the Characters and Places\nforms to let Gemini forge new lore for you instantly.") + "\n\n" +
		st.KeyHint.Render("n") + st.Muted.Render(" create a character")
	return lipgloss.JoinVertical(lipgloss.Left,
		heading(st, "Dashboard", "Your world at a glance."),
		row,
		"",
		st.Card.BorderStyle(lipgloss.HiddenBorder()).Render(promo),
	)
}

func heading(st Styles, title, subtitle string) string {
	return st.Title.Render(title) + "\n" + st.Subtitle.Render(subtitle)
}

func loadingOr(s app.Snapshot, st Styles, spinner string, body func() string) string {
	if s.Loading {
		return st.Spinner.Render(spinner) + st.Muted.Render(" Loading...")
	}
	return body()
}

// Characters renders the character cards.
func Characters(s app.Snapshot, st Styles, md *Markdown, selected, width int, spinner string) string {
	head := heading(st, "Characters", "Manage the souls of your world.") + "\n" +
		st.KeyHint.Render("n") + st.Muted.Render(" add character")
	body := loadingOr(s, st, spinner, func() string {
		chars := s.Characters()
		if len(chars) == 0 {
			return st.Muted.Render("No characters yet. Summon one!")
		}
		cards := make([]string, 0, len(chars))
		for i, e := range chars {
			cards = append(cards, CharacterCard(e, st, md, i == selected, width))
		}
		return lipgloss.JoinVertical(lipgloss.Left, cards...)
	})
	return head + "\n\n" + body
}

// CharacterCard renders one character.
func CharacterCard(e lore.Entity, st Styles, md *Markdown, selected bool, width int) string {
	ch, _ := e.Character()
	role := ch.Role
	if role == "" {
		role = "Unknown"
	}
	inner := cardWidth(width)

	var b strings.Builder
	b.WriteString(st.Bold.Render(e.Name))
	b.WriteString("  ")
	b.WriteString(st.Badge.Render(strings.ToUpper(role)))
	if desc := md.Render(e.Description, inner); desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
	}
	if len(ch.Traits) > 0 {
		traits := make([]string, 0, len(ch.Traits))
		for _, t := range ch.Traits {
			traits = append(traits, st.Trait.Render(t))
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(traits, " "))
	}
	if e.ImageURL != "" {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render("image: " + e.ImageURL))
	}
	return card(st, selected, inner).Render(b.String())
}

// Places renders the place list.
func Places(s app.Snapshot, st Styles, md *Markdown, selected, width int, spinner string) string {
	head := heading(st, "Places", "The geography of your imagination.") + "\n" +
		st.KeyHint.Render("n") + st.Muted.Render(" add place")
	body := loadingOr(s, st, spinner, func() string {
		places := s.Places()
		if len(places) == 0 {
			return st.Muted.Render("No places yet. Chart one!")
		}
		inner := cardWidth(width)
		rows := make([]string, 0, len(places))
		for i, e := range places {
			p, _ := e.Place()
			kind := p.PlaceType
			if kind == "" {
				kind = "Unknown Region"
			}
			var b strings.Builder
			b.WriteString(st.Bold.Render(e.Name))
			b.WriteString("\n")
			b.WriteString(st.Badge.Render(strings.ToUpper(kind)))
			if desc := md.Render(e.Description, inner); desc != "" {
				b.WriteString("\n")
				b.WriteString(desc)
			}
			if e.ImageURL != "" {
				b.WriteString("\n")
				b.WriteString(st.Muted.Render("image: " + e.ImageURL))
			}
			rows = append(rows, card(st, i == selected, inner).Render(b.String()))
		}
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	})
	return head + "\n\n" + body
}

// Timeline renders events in display order.
func Timeline(s app.Snapshot, st Styles, md *Markdown, selected, width int, spinner string) string {
	head := heading(st, "Timeline", "The chronology of existence.") + "\n" +
		st.KeyHint.Render("n") + st.Muted.Render(" add event")
	body := loadingOr(s, st, spinner, func() string {
		events := s.Timeline()
		if len(events) == 0 {
			return st.Muted.Render("No events yet. History awaits.")
		}
		inner := cardWidth(width) - 4
		rows := make([]string, 0, len(events))
		for i, e := range events {
			ev, _ := e.Event()
			var b strings.Builder
			b.WriteString(st.Badge.Render(ev.DateStr))
			b.WriteString("\n")
			b.WriteString(st.Bold.Render(e.Name))
			if desc := md.Render(e.Description, inner); desc != "" {
				b.WriteString("\n")
				b.WriteString(desc)
			}
			marker := st.Divider.Render("│")
			dot := st.Badge.Render("●")
			if i == selected {
				dot = st.Warning.Render("◆")
			}
			entry := card(st, i == selected, inner).Render(b.String())
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, dot+" ", entry), marker)
		}
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	})
	return head + "\n\n" + body
}

// Settings renders the connection page.
func Settings(s app.Snapshot, st Styles) string {
	a := s.About
	status := func(ok bool, yes, no string) string {
		if ok {
			return st.Success.Render("●") + " " + st.Body.Render(yes)
		}
		return st.Error.Render("●") + " " + st.Body.Render(no)
	}
	backend := a.Backend
	if backend == "" {
		backend = "unknown"
	}
	storeURL := a.StoreURL
	if storeURL == "" {
		storeURL = "(not set)"
	}
	model := a.Model
	if model == "" {
		model = "(default)"
	}

	lines := []string{
		heading(st, "Connection Status", "Where your world is kept."),
		status(a.StoreReady, "Database Active", "Database not configured"),
		status(a.GenerationReady, "Generation ready", "Generation disabled (no API key)"),
		"",
		field(st, "Backend", backend),
		field(st, "Store URL", storeURL),
		field(st, "Model", model),
		field(st, "User ID", ShortID(s.User.ID)),
		field(st, "Config", a.ConfigPath),
		"",
		st.Muted.Render("Edits to the config file are picked up automatically."),
	}
	return st.Card.Render(strings.Join(lines, "\n"))
}

func field(st Styles, label, value string) string {
	return st.Label.Width(11).Render(label) + st.Body.Render(value)
}

// ModalTitle names the modal for its mode.
func ModalTitle(m app.ModalMode) string {
	switch m {
	case app.ModalCreateCharacter:
		return "New Character"
	case app.ModalCreatePlace:
		return "New Location"
	case app.ModalCreateEvent:
		return "New Event"
	}
	return ""
}

// FieldLabel is the modal label for a field.
func FieldLabel(m app.ModalMode, f app.Field) string {
	switch f {
	case app.FieldName:
		return "Name / Title"
	case app.FieldRole:
		return "Role / Class"
	case app.FieldPlaceType:
		return "Type"
	case app.FieldDate:
		return "Date String"
	case app.FieldDescription:
		if m.CanGenerate() {
			return "Description (used for AI generation)"
		}
		return "Description"
	}
	return f.Label()
}

// Modal renders the creation modal.
func Modal(s app.Snapshot, st Styles, in ModalInputs, spinner string) string {
	var b strings.Builder
	b.WriteString(st.Title.Render(ModalTitle(s.Modal)))
	b.WriteString("\n\n")
	for _, f := range s.Modal.Fields() {
		label := FieldLabel(s.Modal, f)
		if f == in.Focus {
			b.WriteString(st.KeyHint.Render(label))
		} else {
			b.WriteString(st.Label.Render(label))
		}
		b.WriteString("\n")
		value, ok := in.Fields[f]
		if !ok {
			value = s.Form.Get(f)
		}
		b.WriteString(value)
		b.WriteString("\n\n")
	}

	if s.Modal.CanGenerate() {
		b.WriteString(st.Muted.Render(`Using "Magic Generate" will use Gemini AI to invent details based on your name and description.`))
		b.WriteString("\n\n")
	}

	var buttons []string
	if s.Modal.CanGenerate() {
		switch {
		case s.Generating:
			buttons = append(buttons, st.ButtonMuted.Render(spinner+" Generating..."))
		case strings.TrimSpace(s.Form.Name) == "":
			buttons = append(buttons, st.ButtonMuted.Render("ctrl+g Magic Generate"))
		default:
			buttons = append(buttons, st.Button.Render("ctrl+g Magic Generate"))
		}
	}
	save := "ctrl+s Manual Save"
	if s.Modal == app.ModalCreateEvent {
		save = "ctrl+s Create Event"
	}
	if s.Saving {
		save = spinner + " Saving..."
	}
	buttons = append(buttons, st.ButtonMuted.Render(save))
	b.WriteString(strings.Join(buttons, "  "))
	b.WriteString("\n\n")
	b.WriteString(st.Muted.Render("tab next field · esc cancel"))
	return st.Modal.Width(60).Render(b.String())
}

// AuthScreen renders sign-in and sign-up.
func AuthScreen(st Styles, in AuthInputs, busy bool, message, spinner string) string {
	var b strings.Builder
	b.WriteString(Logo(st))
	b.WriteString("\n")
	b.WriteString(st.Subtitle.Render("Your gateway to infinite worlds."))
	b.WriteString("\n\n")
	mode := "Sign In"
	toggle := "ctrl+t create an account"
	if in.SignUp {
		mode = "Create Account"
		toggle = "ctrl+t already have an account? sign in"
	}
	b.WriteString(st.Title.Render(mode))
	b.WriteString("\n\n")
	b.WriteString(st.Label.Render("Email"))
	b.WriteString("\n")
	b.WriteString(in.Email)
	b.WriteString("\n\n")
	b.WriteString(st.Label.Render("Password"))
	b.WriteString("\n")
	b.WriteString(in.Password)
	b.WriteString("\n\n")
	if busy {
		b.WriteString(st.Spinner.Render(spinner))
		b.WriteString(st.Muted.Render(" Contacting the realm..."))
	} else {
		b.WriteString(st.Button.Render("enter " + mode))
	}
	if message != "" {
		b.WriteString("\n\n")
		b.WriteString(st.Info.Render(message))
	}
	b.WriteString("\n\n")
	b.WriteString(st.Muted.Render(toggle + " · tab switch field · ctrl+c quit"))
	return st.Modal.Width(56).Render(b.String())
}

// NoticeBar renders the current notice, or nothing.
func NoticeBar(n *app.Notice, st Styles, width int) string {
	if n == nil || n.Text == "" {
		return ""
	}
	style := st.Info
	prefix := "ℹ "
	if n.Level == app.NoticeError {
		style = st.Error
		prefix = "✗ "
	}
	text := prefix + n.Text + st.Muted.Render("  (esc to dismiss)")
	if width > 0 {
		return style.MaxWidth(width).Render(text)
	}
	return style.Render(text)
}

// Page renders the body for the current view.
func Page(s app.Snapshot, st Styles, md *Markdown, selected, width int, spinner string) string {
	switch s.View {
	case app.ViewCharacters:
		return Characters(s, st, md, selected, width, spinner)
	case app.ViewPlaces:
		return Places(s, st, md, selected, width, spinner)
	case app.ViewTimeline:
		return Timeline(s, st, md, selected, width, spinner)
	case app.ViewSettings:
		return Settings(s, st)
	}
	return Dashboard(s, st)
}

// KeyHelp is the footer for the main screen.
func KeyHelp(s app.Snapshot, st Styles) string {
	if s.Modal.Open() {
		return ""
	}
	hints := []string{"1-5/tab views", "n new", "r reload"}
	if s.Busy() {
		hints = append([]string{"working..."}, hints...)
	}
	if _, ok := s.View.Kind(); ok {
		hints = append(hints, "↑/↓ select", "d delete")
	}
	hints = append(hints, "ctrl+l sign out", "ctrl+c quit")
	return st.Footer.Render(strings.Join(hints, " · "))
}

func cardWidth(width int) int {
	if width <= 0 {
		width = 80
	}
	w := width - 4
	if w > 76 {
		w = 76
	}
	if w < 20 {
		w = 20
	}
	return w
}

func card(st Styles, selected bool, width int) lipgloss.Style {
	if selected {
		return st.CardSelected.Width(width)
	}
	return st.Card.Width(width)
}
