package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/app"
	"lorebook/internal/logging"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := msg.Width - 40
		if w < 20 {
			w = 20
		}
		if w > 60 {
			w = 60
		}
		m.description.SetWidth(w)
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resultMsg:
		next := m.ctrl.Apply(msg.result)
		m.sync()
		return m, m.run(next)

	case ReconfigureMsg:
		if msg.Err != nil {
			logging.Get(logging.CategoryConfig).Warn("config reload rejected: %v", msg.Err)
			return m, nil
		}
		task := m.ctrl.Reconfigure(msg.Clients)
		m.sync()
		return m, m.run(task)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			hits, misses := m.md.CacheStats()
			logging.UIDebug("quit; render cache %d hits, %d misses", hits, misses)
			m.ctrl.Close()
			return m, tea.Quit
		}
		s := m.ctrl.Snapshot()
		switch {
		case !s.Started:
			return m, nil
		case !s.Authenticated:
			m, cmd = m.updateAuth(msg, s)
		case s.Modal.Open():
			m, cmd = m.updateModal(msg, s)
		default:
			m, cmd = m.updateMain(msg, s)
		}
		m.sync()
		return m, cmd
	}
	return m, nil
}

func (m Model) updateAuth(msg tea.KeyMsg, s app.Snapshot) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.authFocus = 1 - m.authFocus
		if m.authFocus == 0 {
			m.password.Blur()
			return m, m.email.Focus()
		}
		m.email.Blur()
		return m, m.password.Focus()

	case tea.KeyCtrlT:
		m.signUp = !m.signUp
		return m, nil

	case tea.KeyEnter:
		if s.AuthBusy {
			return m, nil
		}
		email, password := m.email.Value(), m.password.Value()
		if m.signUp {
			return m, m.run(m.ctrl.SignUp(email, password))
		}
		return m, m.run(m.ctrl.SignIn(email, password))
	}

	var cmd tea.Cmd
	if m.authFocus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateModal(msg tea.KeyMsg, s app.Snapshot) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.CloseModal()
		return m, nil

	case tea.KeyTab, tea.KeyShiftTab:
		if len(m.fields) == 0 {
			return m, nil
		}
		step := 1
		if msg.Type == tea.KeyShiftTab {
			step = len(m.fields) - 1
		}
		m.focus = (m.focus + step) % len(m.fields)
		m.applyFocus()
		return m, nil

	case tea.KeyCtrlG:
		return m, m.run(m.ctrl.SubmitGenerate())

	case tea.KeyCtrlS:
		return m, m.run(m.ctrl.SubmitManual())

	case tea.KeyEnter:
		if m.focusedField() != app.FieldDescription {
			return m, m.run(m.ctrl.SubmitManual())
		}
	}

	if s.Generating || s.Saving {
		return m, nil
	}

	var cmd tea.Cmd
	f := m.focusedField()
	if f == app.FieldDescription {
		m.description, cmd = m.description.Update(msg)
	} else {
		in := m.lines[f]
		in, cmd = in.Update(msg)
		m.lines[f] = in
	}
	m.ctrl.SetField(f, m.fieldValue(f))
	return m, cmd
}

func (m Model) updateMain(msg tea.KeyMsg, s app.Snapshot) (Model, tea.Cmd) {
	if m.pendingDelete != "" {
		id := m.pendingDelete
		m.pendingDelete = ""
		if msg.String() == "y" {
			return m, m.run(m.ctrl.Delete(id))
		}
		return m, nil
	}

	switch msg.String() {
	case "1", "2", "3", "4", "5":
		m.ctrl.SwitchView(app.Views[int(msg.Runes[0]-'1')])
		m.selected = 0
	case "tab":
		m.ctrl.SwitchView(s.View.Next())
		m.selected = 0
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(ui.Selectable(s))-1 {
			m.selected++
		}
	case "n":
		mode := app.ModalCreateCharacter
		if kind, ok := s.View.Kind(); ok {
			mode = app.ModalFor(kind)
		}
		m.ctrl.OpenModal(mode)
	case "d":
		items := ui.Selectable(s)
		if m.selected < len(items) {
			m.pendingDelete = items[m.selected].ID
		}
	case "r":
		return m, m.run(m.ctrl.Reload())
	case "esc":
		m.ctrl.DismissNotice()
	case "ctrl+l":
		m.signUp = false
		m.password.SetValue("")
		return m, m.run(m.ctrl.SignOut())
	}
	return m, nil
}
