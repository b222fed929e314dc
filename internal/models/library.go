package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// ComponentLibraryEntry describes one component type available in the editor
// palette: the type tag the renderer switches on plus the props template a
// freshly dropped component is seeded from.
type ComponentLibraryEntry struct {
	ID            string         `json:"id" gorm:"type:char(27);primaryKey"`
	Type          string         `json:"type" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name          string         `json:"name" gorm:"type:varchar(255);not null"`
	Category      string         `json:"category" gorm:"type:varchar(100)"`
	Description   string         `json:"description" gorm:"type:text"`
	Icon          string         `json:"icon" gorm:"type:varchar(100)"`
	PropsTemplate map[string]any `json:"props_template" gorm:"column:props_template;serializer:json;type:jsonb"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ComponentLibraryEntry) TableName() string { return "components_library" }

// BeforeCreate hook generates a KSUID before inserting.
func (e *ComponentLibraryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = ksuid.New().String()
	}
	return nil
}

// ComponentLibraryUpdate carries the updatable fields; nil pointers mean
// "leave unchanged".
type ComponentLibraryUpdate struct {
	Name          *string        `json:"name,omitempty"`
	Category      *string        `json:"category,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Icon          *string        `json:"icon,omitempty"`
	PropsTemplate map[string]any `json:"props_template,omitempty"`
}

// DefaultLibrary is the built-in palette used to seed an empty library and as
// the whole library when the filesystem backend is active.
func DefaultLibrary() []ComponentLibraryEntry {
	return []ComponentLibraryEntry{
		{
			Type: "hero_banner", Name: "Hero Banner", Category: "headers", Icon: "ni-tv-2",
			PropsTemplate: map[string]any{"title": "New hero", "subtitle": "", "cta_label": "", "cta_href": ""},
		},
		{
			Type: "features_1", Name: "Feature Grid", Category: "content", Icon: "ni-app",
			PropsTemplate: map[string]any{"title": "Features", "items": []any{}},
		},
		{
			Type: "cta_section", Name: "Call To Action", Category: "content", Icon: "ni-bell-55",
			PropsTemplate: map[string]any{"title": "Ready?", "button_label": "Get started", "button_href": "#"},
		},
		{
			Type: "footer_basic", Name: "Footer", Category: "footers", Icon: "ni-align-center",
			PropsTemplate: map[string]any{"copyright": "", "links": []any{}},
		},
	}
}
