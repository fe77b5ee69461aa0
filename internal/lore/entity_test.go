package lore

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"CHARACTER", KindCharacter, true},
		{"place", KindPlace, true},
		{" timeline ", KindEvent, true},
		{"char", KindCharacter, true},
		{"monster", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParseKind(%q) error: %v", tt.in, err)
			continue
		}
		if !tt.ok {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseKind(%q) err = %v, want ErrValidation", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDraftKindFollowsAttributes(t *testing.T) {
	if k := NewCharacter("u", "Eldric", "", "Paladin", nil).Kind(); k != KindCharacter {
		t.Fatalf("character draft kind = %s", k)
	}
	if k := NewPlace("u", "Vale", "", "Forest").Kind(); k != KindPlace {
		t.Fatalf("place draft kind = %s", k)
	}
	if k := NewEvent("u", "Fall", "", "Year 405", 3).Kind(); k != KindEvent {
		t.Fatalf("event draft kind = %s", k)
	}
	if k := (Draft{}).Kind(); k != "" {
		t.Fatalf("empty draft kind = %q", k)
	}
}

func TestEntityJSONRoundTripKeepsOnlyOwnKindFields(t *testing.T) {
	raw := `{
		"id": "e1",
		"user_id": "u1",
		"type": "PLACE",
		"name": "Ashen Vale",
		"description": "Grey trees.",
		"image_url": "https://picsum.photos/400/300?random=1",
		"metadata": {"role": "", "placeType": "Forest", "dateStr": "", "order": 0},
		"created_at": "2024-05-01T10:00:00Z"
	}`
	var e Entity
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	place, ok := e.Place()
	if !ok {
		t.Fatalf("expected place attributes, got %T", e.Attributes)
	}
	if place.PlaceType != "Forest" {
		t.Errorf("placeType = %q", place.PlaceType)
	}
	if e.CreatedAt.IsZero() || e.ImageURL == "" {
		t.Errorf("created_at/image_url not decoded: %+v", e)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "order") || strings.Contains(string(out), "role") {
		t.Errorf("place encoding leaked other kinds' fields: %s", out)
	}
}

func TestEventWithoutOrderDecodesToZero(t *testing.T) {
	var e Entity
	if err := json.Unmarshal([]byte(`{"id":"x","user_id":"u","type":"EVENT","name":"n","description":"","metadata":{}}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Order() != 0 {
		t.Fatalf("order = %d, want 0", e.Order())
	}
	if e.ImageURL != "" {
		t.Fatalf("event image = %q, want empty", e.ImageURL)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	var e Entity
	err := json.Unmarshal([]byte(`{"id":"x","user_id":"u","type":"DRAGON","name":"n","metadata":{}}`), &e)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCloneDoesNotShareTraits(t *testing.T) {
	e := Entity{ID: "1", Attributes: CharacterAttributes{Traits: []string{"loyal"}}}
	c := e.Clone()
	ch, _ := c.Character()
	ch.Traits[0] = "treacherous"
	orig, _ := e.Character()
	if orig.Traits[0] != "loyal" {
		t.Fatalf("clone shares traits backing array")
	}
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr string
	}{
		{"valid character", NewCharacter("u", "Eldric", "", "Paladin", []string{"brave"}), ""},
		{"missing owner", NewPlace("", "Vale", "", "Forest"), "owner is required"},
		{"blank name", NewEvent("u", "   ", "", "", 1), "name is required"},
		{"no attributes", Draft{OwnerID: "u", Name: "x"}, "kind is required"},
		{"negative order", NewEvent("u", "n", "", "", -1), "order must be at least 0"},
		{"long name", NewPlace("u", strings.Repeat("a", 201), "", ""), "name must be at most 200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPlaceholderImage(t *testing.T) {
	a := PlaceholderImage(time.UnixMilli(1000))
	b := PlaceholderImage(time.UnixMilli(2000))
	if a == b || !strings.HasPrefix(a, "https://picsum.photos/400/300?random=") {
		t.Fatalf("unexpected placeholders %q %q", a, b)
	}
}

func TestDescribe(t *testing.T) {
	gen := errors.Join(ErrGeneration, ErrMissingCredential)
	if got := Describe(gen); !strings.Contains(got, "API key") {
		t.Errorf("Describe(generation missing key) = %q", got)
	}
	if got := Describe(ErrNotFound); got != "That record no longer exists." {
		t.Errorf("Describe(ErrNotFound) = %q", got)
	}
	if Describe(nil) != "" {
		t.Errorf("Describe(nil) should be empty")
	}
}

func TestCharacterMetadataKeepsEmptyTraits(t *testing.T) {
	data, err := json.Marshal(MetadataOf(CharacterAttributes{Role: "Paladin"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `{"role":"Paladin","traits":[]}`; got != want {
		t.Errorf("character metadata = %s, want %s", got, want)
	}

	data, err = json.Marshal(RowFromDraft(NewPlace("u1", "Vale", "", "Valley")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "traits") {
		t.Errorf("place row carries traits: %s", data)
	}
}
