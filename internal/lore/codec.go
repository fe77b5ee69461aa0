package lore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the loose wire form of Attributes. Rows written by other
// clients may carry fields of every kind; only the fields of the row's own
// kind survive decoding.
type Metadata struct {
	Role        string   `json:"role,omitempty"`
	Traits      []string `json:"traits,omitempty"`
	PlaceType   string   `json:"placeType,omitempty"`
	Coordinates string   `json:"coordinates,omitempty"`
	DateStr     string   `json:"dateStr,omitempty"`
	Order       *int     `json:"order,omitempty"`
}

// MarshalJSON writes traits whenever they are set, so a character
// without traits is stored with an empty list rather than no key.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type plain Metadata
	out := struct {
		plain
		Traits *[]string `json:"traits,omitempty"`
	}{plain: plain(m)}
	if m.Traits != nil {
		out.Traits = &m.Traits
	}
	return json.Marshal(out)
}

// MetadataOf flattens attributes into their wire form.
func MetadataOf(a Attributes) Metadata {
	switch v := a.(type) {
	case CharacterAttributes:
		traits := v.Traits
		if traits == nil {
			traits = []string{}
		}
		return Metadata{Role: v.Role, Traits: traits}
	case PlaceAttributes:
		return Metadata{PlaceType: v.PlaceType, Coordinates: v.Coordinates}
	case EventAttributes:
		order := v.Order
		return Metadata{DateStr: v.DateStr, Order: &order}
	}
	return Metadata{}
}

// Attributes narrows the metadata to the variant for kind.
func (m Metadata) Attributes(kind Kind) (Attributes, error) {
	switch kind {
	case KindCharacter:
		return CharacterAttributes{Role: m.Role, Traits: m.Traits}, nil
	case KindPlace:
		return PlaceAttributes{PlaceType: m.PlaceType, Coordinates: m.Coordinates}, nil
	case KindEvent:
		ev := EventAttributes{DateStr: m.DateStr}
		if m.Order != nil {
			ev.Order = *m.Order
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
}

// Row is the JSON shape of the entities table.
type Row struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"user_id"`
	Type        Kind       `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Metadata    Metadata   `json:"metadata"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// RowFromDraft encodes a draft for insertion.
func RowFromDraft(d Draft) Row {
	r := Row{
		UserID:      d.OwnerID,
		Type:        d.Kind(),
		Name:        d.Name,
		Description: d.Description,
		Metadata:    MetadataOf(d.Attributes),
	}
	if d.ImageURL != "" {
		img := d.ImageURL
		r.ImageURL = &img
	}
	return r
}

// RowFromEntity encodes a persisted entity.
func RowFromEntity(e Entity) Row {
	r := RowFromDraft(e.Draft())
	r.ID = e.ID
	if !e.CreatedAt.IsZero() {
		t := e.CreatedAt
		r.CreatedAt = &t
	}
	return r
}

// Entity decodes a row.
func (r Row) Entity() (Entity, error) {
	attrs, err := r.Metadata.Attributes(r.Type)
	if err != nil {
		return Entity{}, err
	}
	e := Entity{
		ID:          r.ID,
		OwnerID:     r.UserID,
		Name:        r.Name,
		Description: r.Description,
		Attributes:  attrs,
	}
	if r.ImageURL != nil {
		e.ImageURL = *r.ImageURL
	}
	if r.CreatedAt != nil {
		e.CreatedAt = *r.CreatedAt
	}
	return e, nil
}

// MarshalJSON writes the entity in its table shape.
func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(RowFromEntity(e))
}

// UnmarshalJSON reads the entity from its table shape.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var r Row
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded, err := r.Entity()
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// MarshalJSON writes the draft in its insert shape.
func (d Draft) MarshalJSON() ([]byte, error) {
	return json.Marshal(RowFromDraft(d))
}
