package models

import (
	"time"

	"gorm.io/gorm"
)

type PageStatus string

const (
	StatusDraft     PageStatus = "draft"
	StatusPublished PageStatus = "published"
)

// Component is one editable block on a page. Props and Style are free-form:
// the editor core treats them as opaque JSON and never assumes specific keys.
type Component struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
	Style map[string]any `json:"style,omitempty"`
}

// Page is one buildable page, keyed by slug. Components are stored in render
// order (front to back). The same struct is persisted to Postgres (jsonb
// columns) and to the filesystem store (one JSON file per slug).
type Page struct {
	Slug       string         `json:"slug" gorm:"primaryKey;type:varchar(255)"`
	Title      map[string]any `json:"title_json" gorm:"column:title_json;serializer:json;type:jsonb"`
	Components []Component    `json:"components_json" gorm:"column:components_json;serializer:json;type:jsonb"`
	Status     PageStatus     `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	Version    int            `json:"version" gorm:"not null;default:1"`
	UpdatedBy  string         `json:"updated_by" gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (Page) TableName() string { return "pages" }

// PageDraft is the write shape accepted by WritePage. Nil Title leaves the
// stored title untouched; Components always replaces the stored list.
type PageDraft struct {
	Title      map[string]any `json:"title_json,omitempty"`
	Components []Component    `json:"components_json"`
	UpdatedBy  string         `json:"updated_by,omitempty"`
}
