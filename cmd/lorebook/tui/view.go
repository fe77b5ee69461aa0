package tui

import (
	"github.com/charmbracelet/lipgloss"

	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/app"
)

// View renders the current screen.
func (m Model) View() string {
	s := m.ctrl.Snapshot()
	if !s.Started {
		return m.center(m.styles.Spinner.Render(m.spinner.View()) + m.styles.Muted.Render(" Opening the archives..."))
	}
	if !s.Authenticated {
		return m.center(ui.AuthScreen(m.styles, ui.AuthInputs{
			Email:    m.email.View(),
			Password: m.password.View(),
			SignUp:   m.signUp,
		}, s.AuthBusy, s.AuthMessage, m.spinner.View()))
	}

	sidebar := ui.Sidebar(s, m.styles)
	contentWidth := m.width - lipgloss.Width(sidebar) - 4
	if contentWidth < 30 {
		contentWidth = 30
	}

	var body string
	if s.Modal.Open() {
		body = ui.Modal(s, m.styles, m.modalInputs(), m.spinner.View())
	} else {
		body = ui.Page(s, m.styles, m.md, m.selected, contentWidth, m.spinner.View())
	}

	parts := []string{}
	if bar := ui.NoticeBar(s.Notice, m.styles, contentWidth); bar != "" {
		parts = append(parts, bar)
	}
	if m.pendingDelete != "" {
		name := m.pendingDelete
		if e, ok := s.Entity(m.pendingDelete); ok {
			name = e.Name
		}
		parts = append(parts, m.styles.Warning.Render("Delete "+name+"? y/n"))
	}
	parts = append(parts, body)
	content := m.styles.Content.Width(contentWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))

	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, main, ui.KeyHelp(s, m.styles))
}

func (m Model) modalInputs() ui.ModalInputs {
	in := ui.ModalInputs{Fields: make(map[app.Field]string, len(m.fields)), Focus: m.focusedField()}
	for _, f := range m.fields {
		if f == app.FieldDescription {
			in.Fields[f] = m.description.View()
			continue
		}
		in.Fields[f] = m.lines[f].View()
	}
	return in
}

func (m Model) center(s string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}
