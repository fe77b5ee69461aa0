package app

import (
	"sort"

	"lorebook/internal/lore"
)

// Snapshot is an immutable copy of the controller state for rendering.
// Mutating a snapshot never affects the controller.
type Snapshot struct {
	Started       bool
	Authenticated bool
	User          User
	View          View
	Entities      []lore.Entity
	Modal         ModalMode
	Form          Form
	Generating    bool
	Saving        bool
	Loading       bool
	AuthBusy      bool
	Notice        *Notice
	AuthMessage   string
	About         About
}

// Counts is the number of entities of each kind.
type Counts struct {
	Characters int
	Places     int
	Events     int
}

// Total is the number of entities.
func (c Counts) Total() int { return c.Characters + c.Places + c.Events }

// Counts scans the list.
func (s Snapshot) Counts() Counts {
	var c Counts
	for _, e := range s.Entities {
		switch e.Kind() {
		case lore.KindCharacter:
			c.Characters++
		case lore.KindPlace:
			c.Places++
		case lore.KindEvent:
			c.Events++
		}
	}
	return c
}

// OfKind returns the entities of kind in list order.
func (s Snapshot) OfKind(kind lore.Kind) []lore.Entity {
	out := make([]lore.Entity, 0, len(s.Entities))
	for _, e := range s.Entities {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// Characters returns the characters, newest first.
func (s Snapshot) Characters() []lore.Entity { return s.OfKind(lore.KindCharacter) }

// Places returns the places, newest first.
func (s Snapshot) Places() []lore.Entity { return s.OfKind(lore.KindPlace) }

// Timeline returns the events sorted by ascending order. Equal orders keep
// their list order.
func (s Snapshot) Timeline() []lore.Entity {
	events := s.OfKind(lore.KindEvent)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Order() < events[j].Order()
	})
	return events
}

// Entity looks up an entity by id.
func (s Snapshot) Entity(id string) (lore.Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return lore.Entity{}, false
}

// Busy reports whether any call is in flight.
func (s Snapshot) Busy() bool {
	return s.Generating || s.Saving || s.Loading || s.AuthBusy
}
