package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"lorebook/internal/lore"
)

// EntityModel is the local `entities` table.
type EntityModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	OwnerID     string `gorm:"index:idx_entities_owner_created,priority:1;not null"`
	Type        string `gorm:"size:16;not null"`
	Name        string `gorm:"size:200;not null"`
	Description string
	ImageURL    string
	Metadata    datatypes.JSON
	CreatedAt   time.Time `gorm:"index:idx_entities_owner_created,priority:2"`
	// Seq breaks created_at ties so ordering is total.
	Seq int64 `gorm:"not null;default:0"`
}

// TableName pins the table name shared with the hosted schema.
func (EntityModel) TableName() string { return "entities" }

func modelFromDraft(d lore.Draft) (EntityModel, error) {
	meta, err := json.Marshal(lore.MetadataOf(d.Attributes))
	if err != nil {
		return EntityModel{}, fmt.Errorf("encode metadata: %w", err)
	}
	return EntityModel{
		OwnerID:     d.OwnerID,
		Type:        string(d.Kind()),
		Name:        d.Name,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Metadata:    datatypes.JSON(meta),
	}, nil
}

func (m EntityModel) entity() (lore.Entity, error) {
	var meta lore.Metadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return lore.Entity{}, fmt.Errorf("decode metadata for %s: %w", m.ID, err)
		}
	}
	row := lore.Row{
		ID:          m.ID,
		UserID:      m.OwnerID,
		Type:        lore.Kind(m.Type),
		Name:        m.Name,
		Description: m.Description,
		Metadata:    meta,
	}
	if m.ImageURL != "" {
		img := m.ImageURL
		row.ImageURL = &img
	}
	created := m.CreatedAt
	row.CreatedAt = &created
	return row.Entity()
}
