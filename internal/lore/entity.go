// Package lore defines the world-building records a user keeps: characters,
// places and timeline events.
//
// An Entity carries kind-specific attributes as a closed tagged union, so a
// place can never hold a character's traits and an event always has an order.
package lore

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the three record types. It never changes after creation.
type Kind string

const (
	KindCharacter Kind = "CHARACTER"
	KindPlace     Kind = "PLACE"
	KindEvent     Kind = "EVENT"
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindCharacter, KindPlace, KindEvent}

// ParseKind accepts the wire value (case-insensitive) or a short alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CHARACTER", "CHAR", "CHARACTERS":
		return KindCharacter, nil
	case "PLACE", "PLACES", "LOCATION":
		return KindPlace, nil
	case "EVENT", "EVENTS", "TIMELINE":
		return KindEvent, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrValidation, s)
}

// Label is the human name used in headings.
func (k Kind) Label() string {
	switch k {
	case KindCharacter:
		return "Character"
	case KindPlace:
		return "Place"
	case KindEvent:
		return "Event"
	}
	return string(k)
}

// Attributes is the kind-specific part of a record. The set of
// implementations is closed: CharacterAttributes, PlaceAttributes and
// EventAttributes.
type Attributes interface {
	Kind() Kind
	sealed()
}

// CharacterAttributes holds a character's role and ordered traits.
type CharacterAttributes struct {
	Role   string
	Traits []string
}

// PlaceAttributes holds a place's type. Coordinates is kept for stored
// records that carry it; nothing in the app sets it.
type PlaceAttributes struct {
	PlaceType   string
	Coordinates string
}

// EventAttributes holds an event's free-form date and display order.
type EventAttributes struct {
	DateStr string
	Order   int
}

func (CharacterAttributes) Kind() Kind { return KindCharacter }
func (PlaceAttributes) Kind() Kind     { return KindPlace }
func (EventAttributes) Kind() Kind     { return KindEvent }

func (CharacterAttributes) sealed() {}
func (PlaceAttributes) sealed()     {}
func (EventAttributes) sealed()     {}

// Draft is an entity before the store has assigned its id and creation time.
type Draft struct {
	OwnerID     string
	Name        string
	Description string
	ImageURL    string
	Attributes  Attributes
}

// Kind reports the draft's kind, derived from its attributes.
func (d Draft) Kind() Kind {
	if d.Attributes == nil {
		return ""
	}
	return d.Attributes.Kind()
}

// Entity is a persisted record.
type Entity struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	ImageURL    string
	Attributes  Attributes
	CreatedAt   time.Time
}

// Kind reports the entity's kind, derived from its attributes.
func (e Entity) Kind() Kind {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes.Kind()
}

// Character returns the character attributes when e is a character.
func (e Entity) Character() (CharacterAttributes, bool) {
	a, ok := e.Attributes.(CharacterAttributes)
	return a, ok
}

// Place returns the place attributes when e is a place.
func (e Entity) Place() (PlaceAttributes, bool) {
	a, ok := e.Attributes.(PlaceAttributes)
	return a, ok
}

// Event returns the event attributes when e is an event.
func (e Entity) Event() (EventAttributes, bool) {
	a, ok := e.Attributes.(EventAttributes)
	return a, ok
}

// Order is the event display order, 0 for anything that is not an event.
func (e Entity) Order() int {
	if ev, ok := e.Event(); ok {
		return ev.Order
	}
	return 0
}

// Draft strips the store-assigned fields.
func (e Entity) Draft() Draft {
	return Draft{
		OwnerID:     e.OwnerID,
		Name:        e.Name,
		Description: e.Description,
		ImageURL:    e.ImageURL,
		Attributes:  e.Attributes,
	}
}

// Clone returns a deep copy; the traits slice is not shared.
func (e Entity) Clone() Entity {
	if c, ok := e.Attributes.(CharacterAttributes); ok && c.Traits != nil {
		c.Traits = append([]string(nil), c.Traits...)
		e.Attributes = c
	}
	return e
}

// NewCharacter builds a character draft.
func NewCharacter(owner, name, description, role string, traits []string) Draft {
	return Draft{
		OwnerID:     owner,
		Name:        name,
		Description: description,
		Attributes:  CharacterAttributes{Role: role, Traits: traits},
	}
}

// NewPlace builds a place draft.
func NewPlace(owner, name, description, placeType string) Draft {
	return Draft{
		OwnerID:     owner,
		Name:        name,
		Description: description,
		Attributes:  PlaceAttributes{PlaceType: placeType},
	}
}

// NewEvent builds an event draft. Events carry no image.
func NewEvent(owner, name, description, date string, order int) Draft {
	return Draft{
		OwnerID:     owner,
		Name:        name,
		Description: description,
		Attributes:  EventAttributes{DateStr: date, Order: order},
	}
}

// PlaceholderImage returns a random placeholder picture reference. The seed
// only busts caches; any distinct value yields a different picture.
func PlaceholderImage(seed time.Time) string {
	return fmt.Sprintf("https://picsum.photos/400/300?random=%d", seed.UnixMilli())
}
