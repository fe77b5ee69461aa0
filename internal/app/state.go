package app

import (
	"fmt"
	"strings"

	"lorebook/internal/lore"
)

// View is the page the user is looking at.
type View int

const (
	ViewDashboard View = iota
	ViewCharacters
	ViewPlaces
	ViewTimeline
	ViewSettings
)

// Views lists every view in navigation order.
var Views = []View{ViewDashboard, ViewCharacters, ViewPlaces, ViewTimeline, ViewSettings}

// Title is the navigation label.
func (v View) Title() string {
	switch v {
	case ViewDashboard:
		return "Dashboard"
	case ViewCharacters:
		return "Characters"
	case ViewPlaces:
		return "Places"
	case ViewTimeline:
		return "Timeline"
	case ViewSettings:
		return "Settings"
	}
	return fmt.Sprintf("View(%d)", int(v))
}

// Next cycles to the following view.
func (v View) Next() View {
	return Views[(int(v)+1)%len(Views)]
}

// Kind is the entity kind a view lists, if any.
func (v View) Kind() (lore.Kind, bool) {
	switch v {
	case ViewCharacters:
		return lore.KindCharacter, true
	case ViewPlaces:
		return lore.KindPlace, true
	case ViewTimeline:
		return lore.KindEvent, true
	}
	return "", false
}

// ModalMode is the creation modal's state. The zero value is closed.
type ModalMode int

const (
	ModalClosed ModalMode = iota
	ModalCreateCharacter
	ModalCreatePlace
	ModalCreateEvent
)

// ModalFor returns the creation mode for kind.
func ModalFor(kind lore.Kind) ModalMode {
	switch kind {
	case lore.KindCharacter:
		return ModalCreateCharacter
	case lore.KindPlace:
		return ModalCreatePlace
	case lore.KindEvent:
		return ModalCreateEvent
	}
	return ModalClosed
}

// Kind is the kind of entity the modal creates.
func (m ModalMode) Kind() lore.Kind {
	switch m {
	case ModalCreateCharacter:
		return lore.KindCharacter
	case ModalCreatePlace:
		return lore.KindPlace
	case ModalCreateEvent:
		return lore.KindEvent
	}
	return ""
}

// Open reports whether the modal is showing.
func (m ModalMode) Open() bool { return m != ModalClosed }

// CanGenerate reports whether the mode supports magic generation.
func (m ModalMode) CanGenerate() bool {
	return m == ModalCreateCharacter || m == ModalCreatePlace
}

// Field identifies a form input.
type Field int

const (
	FieldName Field = iota
	FieldDescription
	FieldRole
	FieldPlaceType
	FieldDate
)

// Fields returns the inputs shown for a mode, in focus order.
func (m ModalMode) Fields() []Field {
	switch m {
	case ModalCreateCharacter:
		return []Field{FieldName, FieldRole, FieldDescription}
	case ModalCreatePlace:
		return []Field{FieldName, FieldPlaceType, FieldDescription}
	case ModalCreateEvent:
		return []Field{FieldName, FieldDate, FieldDescription}
	}
	return nil
}

// Label is the input label.
func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldDescription:
		return "Description"
	case FieldRole:
		return "Role"
	case FieldPlaceType:
		return "Type"
	case FieldDate:
		return "Date"
	}
	return ""
}

// Form holds the creation modal's inputs.
type Form struct {
	Name        string
	Description string
	Role        string
	PlaceType   string
	Date        string
}

// Get returns one field.
func (f Form) Get(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldDescription:
		return f.Description
	case FieldRole:
		return f.Role
	case FieldPlaceType:
		return f.PlaceType
	case FieldDate:
		return f.Date
	}
	return ""
}

func (f *Form) set(field Field, value string) {
	switch field {
	case FieldName:
		f.Name = value
	case FieldDescription:
		f.Description = value
	case FieldRole:
		f.Role = value
	case FieldPlaceType:
		f.PlaceType = value
	case FieldDate:
		f.Date = value
	}
}

// IsZero reports whether every field is empty.
func (f Form) IsZero() bool { return f == Form{} }

// NoticeLevel grades a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a message shown until dismissed or replaced.
type Notice struct {
	Level NoticeLevel
	Text  string
	// Err is the underlying error for error notices.
	Err error
}

// User is the signed-in identity.
type User struct {
	ID    string
	Email string
}

// About describes the wiring shown on the settings page.
type About struct {
	Backend         string
	StoreURL        string
	StoreReady      bool
	Model           string
	GenerationReady bool
	ConfigPath      string
}

// state is everything the controller owns.
type state struct {
	user        *User
	view        View
	entities    []lore.Entity
	modal       ModalMode
	form        Form
	generating  bool
	saving      bool
	loading     bool
	authBusy    bool
	started     bool
	notice      *Notice
	authMessage string
	journal     []change
}

func authMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{lore.ErrUnauthenticated, lore.ErrValidation} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
