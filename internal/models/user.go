package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// User is a dashboard account that can edit and publish pages.
type User struct {
	ID        string         `json:"id" gorm:"type:char(27);primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string         `json:"name" gorm:"type:varchar(255)"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'editor'"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"` // Soft delete support
}

func (User) TableName() string { return "users" }

// BeforeCreate hook generates a KSUID before inserting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = ksuid.New().String()
	}
	return nil
}

type UserCreate struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type UserUpdate struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
	Role  *string `json:"role,omitempty"`
}
