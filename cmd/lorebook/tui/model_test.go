package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/app"
	"lorebook/internal/auth"
	"lorebook/internal/generation"
	"lorebook/internal/store"
)

type stubGenerator struct{}

func (stubGenerator) GenerateCharacter(_ context.Context, prompt string) (generation.Character, error) {
	return generation.Character{
		Name:        "Vela Thorn",
		Role:        "Rogue",
		Description: "Quick with a blade.",
		Traits:      []string{"Sly"},
	}, nil
}

func (stubGenerator) GeneratePlace(_ context.Context, prompt string) (generation.Place, error) {
	return generation.Place{Name: "Mirewood", Type: "Swamp", Description: "Damp."}, nil
}

type harness struct {
	mgr  *auth.Manager
	st   *store.SQLiteStore
	ctrl *app.Controller
}

func newHarness(t *testing.T, dir string) *harness {
	t.Helper()
	db, err := store.OpenDB(filepath.Join(dir, "lorebook.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	provider, err := auth.NewLocalProvider(db, filepath.Join(dir, "secret.key"), time.Hour)
	require.NoError(t, err)
	mgr := auth.NewManager(provider, filepath.Join(dir, "session.json"))
	st, err := store.NewSQLiteStore(db, mgr)
	require.NoError(t, err)

	ctrl := app.New(app.Clients{
		Store:     st,
		Auth:      mgr,
		Generator: stubGenerator{},
		About:     app.About{Backend: "local", StoreReady: true, GenerationReady: true},
	})
	t.Cleanup(ctrl.Close)
	return &harness{mgr: mgr, st: st, ctrl: ctrl}
}

func (h *harness) model() Model {
	m := New(h.ctrl, ui.NewStyles(ui.DarkTheme()), ui.PlainMarkdown())
	m.inline = true
	m.width, m.height = 120, 40
	_ = m.Init()
	return m
}

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+g":
		return tea.KeyMsg{Type: tea.KeyCtrlG}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func signedUp(t *testing.T, h *harness) Model {
	t.Helper()
	m := h.model()
	require.Contains(t, m.View(), "Your gateway to infinite worlds.")
	m = press(m, "ctrl+t", "architect@world.com", "tab", "secret1", "enter")
	require.True(t, h.ctrl.Snapshot().Authenticated, "sign-up should start a session: %q", h.ctrl.Snapshot().AuthMessage)
	return m
}

func TestSignUpAndManualCreate(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)

	m = press(m, "2", "n")
	require.Equal(t, app.ModalCreateCharacter, h.ctrl.Snapshot().Modal)
	assert.Contains(t, m.View(), "New Character")

	m = press(m, "Eldric", "tab", "Paladin", "ctrl+s")
	s := h.ctrl.Snapshot()
	assert.False(t, s.Modal.Open())
	require.Len(t, s.Characters(), 1)
	ch, _ := s.Characters()[0].Character()
	assert.Equal(t, "Paladin", ch.Role)
	require.NotNil(t, s.Notice)
	assert.Equal(t, `Saved character "Eldric".`, s.Notice.Text)

	view := m.View()
	assert.Contains(t, view, "Eldric")
	assert.Contains(t, view, "PALADIN")

	m = press(m, "esc")
	assert.Nil(t, h.ctrl.Snapshot().Notice)
}

func TestMagicGenerate(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)

	m = press(m, "2", "n", "ctrl+g")
	assert.True(t, h.ctrl.Snapshot().Modal.Open(), "empty name must not generate")

	m = press(m, "Vela", "ctrl+g")
	s := h.ctrl.Snapshot()
	require.Len(t, s.Characters(), 1)
	assert.Equal(t, "Vela Thorn", s.Characters()[0].Name)
	assert.Contains(t, m.View(), "Sly")
}

func TestEnterInDescriptionDoesNotSave(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)

	m = press(m, "3", "n", "Greyhold", "tab", "tab", "enter")
	s := h.ctrl.Snapshot()
	assert.Equal(t, app.ModalCreatePlace, s.Modal)
	assert.Empty(t, s.Places())

	m = press(m, "tab", "enter")
	assert.Len(t, h.ctrl.Snapshot().Places(), 1)
	_ = m
}

func TestEscCancelsModal(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)

	m = press(m, "4", "n", "The Founding", "esc")
	s := h.ctrl.Snapshot()
	assert.False(t, s.Modal.Open())
	assert.Empty(t, s.Entities)

	m = press(m, "n")
	assert.Equal(t, "", h.ctrl.Snapshot().Form.Name, "reopened modal starts empty")
	assert.NotContains(t, m.View(), "The Founding")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)
	m = press(m, "3", "n", "Greyhold", "enter", "n", "Mirewood", "enter")
	require.Len(t, h.ctrl.Snapshot().Places(), 2)

	m = press(m, "down", "d")
	assert.Contains(t, m.View(), "Delete Greyhold? y/n")
	m = press(m, "n")
	assert.Len(t, h.ctrl.Snapshot().Places(), 2)

	m = press(m, "d", "y")
	places := h.ctrl.Snapshot().Places()
	require.Len(t, places, 1)
	assert.Equal(t, "Mirewood", places[0].Name)
	assert.Equal(t, 0, m.selected)
}

func TestSignOutReturnsToAuth(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)
	m = press(m, "2", "n", "Eldric", "enter")

	m = press(m, "ctrl+l")
	s := h.ctrl.Snapshot()
	assert.False(t, s.Authenticated)
	assert.Empty(t, s.Entities)
	assert.Contains(t, m.View(), "Your gateway to infinite worlds.")
	assert.Empty(t, m.password.Value())
}

func TestSessionRestoredOnStart(t *testing.T) {
	dir := t.TempDir()
	first := newHarness(t, dir)
	m := signedUp(t, first)
	press(m, "2", "n", "Eldric", "enter")

	second := newHarness(t, dir)
	m = second.model()
	s := second.ctrl.Snapshot()
	require.True(t, s.Authenticated)
	assert.Equal(t, "architect@world.com", s.User.Email)
	m = press(m, "2")
	assert.Contains(t, m.View(), "Eldric")
}

func TestBadCredentialsShowMessage(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := h.model()
	m = press(m, "nobody@world.com", "tab", "wrongpw", "enter")
	s := h.ctrl.Snapshot()
	assert.False(t, s.Authenticated)
	assert.NotEmpty(t, s.AuthMessage)
	assert.True(t, strings.Contains(m.View(), s.AuthMessage))
}

func TestReconfigureError(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)
	next, cmd := m.Update(ReconfigureMsg{Err: errors.New("bad yaml")})
	assert.Nil(t, cmd)
	assert.True(t, h.ctrl.Snapshot().Authenticated)
	_ = next
}

func TestReconfigureSwapsClients(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := signedUp(t, h)
	m = press(m, "3")

	clients := app.Clients{Store: h.st, Auth: h.mgr, Generator: stubGenerator{}, About: app.About{Backend: "local", Model: "other"}}
	next, _ := m.Update(ReconfigureMsg{Clients: clients})
	m = next.(Model)

	s := h.ctrl.Snapshot()
	assert.True(t, s.Authenticated, "persisted session survives a reconfigure")
	assert.Equal(t, app.ViewPlaces, s.View)
	assert.Equal(t, "other", s.About.Model)
}

func TestQuit(t *testing.T) {
	h := newHarness(t, t.TempDir())
	m := h.model()
	_, cmd := m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
