// Package tui is the interactive LoreBook terminal interface. It owns the
// bubbletea program loop and forwards user intents to an app.Controller.
package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/app"
	"lorebook/internal/logging"
)

// resultMsg carries a finished controller task back to the UI loop.
type resultMsg struct {
	result app.Result
}

// ReconfigureMsg asks the model to swap the controller's clients, for
// example after the config file changed. Err reports a config that could
// not be loaded; the current clients stay in place.
type ReconfigureMsg struct {
	Clients app.Clients
	Err     error
}

// Model is the bubbletea model.
type Model struct {
	ctrl   *app.Controller
	styles ui.Styles
	md     *ui.Markdown

	spinner spinner.Model

	// Auth screen
	email     textinput.Model
	password  textinput.Model
	authFocus int
	signUp    bool

	// Creation modal
	modal       app.ModalMode
	fields      []app.Field
	lines       map[app.Field]textinput.Model
	description textarea.Model
	focus       int

	selected      int
	pendingDelete string
	width         int
	height        int

	// inline runs tasks on the UI goroutine instead of as commands.
	inline bool
}

// New creates the model around a controller.
func New(ctrl *app.Controller, styles ui.Styles, md *ui.Markdown) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	email := textinput.New()
	email.Placeholder = "architect@world.com"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 72

	return Model{
		ctrl:     ctrl,
		styles:   styles,
		md:       md,
		spinner:  sp,
		email:    email,
		password: password,
		lines:    make(map[app.Field]textinput.Model),
		width:    100,
		height:   30,
	}
}

// Init starts the spinner and restores any persisted session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.run(m.ctrl.Start()),
	)
}

// run turns a controller task into a command whose message is folded back
// in through Apply.
func (m Model) run(task app.Task) tea.Cmd {
	if task == nil {
		return nil
	}
	if m.inline {
		m.ctrl.Drive(task)
		return nil
	}
	return func() tea.Msg {
		return resultMsg{result: task()}
	}
}

// Run starts a full-screen program and blocks until the user quits.
// Reconfigure messages can be delivered through the returned program
// before it exits.
func Run(m Model, ready func(*tea.Program)) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	if ready != nil {
		ready(p)
	}
	_, err := p.Run()
	if err != nil {
		logging.Get(logging.CategoryUI).Error("program exited: %v", err)
	}
	return err
}

func newLine(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 120
	return in
}

func placeholder(f app.Field) string {
	switch f {
	case app.FieldName:
		return "e.g. Eldric Shadowbane"
	case app.FieldRole:
		return "e.g. Paladin"
	case app.FieldPlaceType:
		return "e.g. Castle, Swamp, City"
	case app.FieldDate:
		return "e.g. Year 405, Winter"
	case app.FieldDescription:
		return "A brief description..."
	}
	return ""
}

// resetModal rebuilds the inputs for a newly opened modal.
func (m *Model) resetModal(mode app.ModalMode, form app.Form) {
	m.modal = mode
	m.fields = mode.Fields()
	m.focus = 0
	m.lines = make(map[app.Field]textinput.Model, len(m.fields))
	for _, f := range m.fields {
		if f == app.FieldDescription {
			ta := textarea.New()
			ta.Placeholder = placeholder(f)
			ta.ShowLineNumbers = false
			ta.SetHeight(4)
			ta.SetWidth(50)
			ta.SetValue(form.Get(f))
			m.description = ta
			continue
		}
		in := newLine(placeholder(f))
		in.SetValue(form.Get(f))
		m.lines[f] = in
	}
	m.applyFocus()
}

func (m *Model) focusedField() app.Field {
	if len(m.fields) == 0 {
		return app.FieldName
	}
	return m.fields[m.focus]
}

func (m *Model) applyFocus() {
	current := m.focusedField()
	for f, in := range m.lines {
		if f == current {
			in.Focus()
		} else {
			in.Blur()
		}
		m.lines[f] = in
	}
	if current == app.FieldDescription {
		m.description.Focus()
	} else {
		m.description.Blur()
	}
}

func (m *Model) fieldValue(f app.Field) string {
	if f == app.FieldDescription {
		return m.description.Value()
	}
	return m.lines[f].Value()
}

// sync reconciles the widgets with the controller after every update.
func (m *Model) sync() {
	s := m.ctrl.Snapshot()
	if s.Modal != m.modal {
		if s.Modal.Open() {
			m.resetModal(s.Modal, s.Form)
		} else {
			m.modal = app.ModalClosed
			m.fields = nil
		}
	}
	if !s.Authenticated {
		m.pendingDelete = ""
	}
	if n := len(ui.Selectable(s)); m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}
