package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// PageVersion is an immutable snapshot of a page's component list, appended
// on every successful save. KSUIDs keep versions time-ordered without an
// extra index on created_at.
type PageVersion struct {
	ID         string      `json:"id" gorm:"type:char(27);primaryKey"`
	Slug       string      `json:"slug" gorm:"type:varchar(255);index;not null"`
	Version    int         `json:"version" gorm:"not null"`
	Components []Component `json:"components_json" gorm:"column:components_json;serializer:json;type:jsonb"`
	SavedBy    string      `json:"saved_by" gorm:"type:varchar(255)"`
	CreatedAt  time.Time   `json:"created_at" gorm:"autoCreateTime"`
}

func (PageVersion) TableName() string { return "page_versions" }

// BeforeCreate hook generates a KSUID before inserting.
func (v *PageVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = ksuid.New().String()
	}
	return nil
}
