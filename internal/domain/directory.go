package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Department is a directory entity. OwnerID is the user that created the
// record and is what ownership policy checks compare against.
type Department struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:1024" json:"description"`
	OwnerID     string    `gorm:"type:uuid;index" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *Department) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type Location struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Address      string    `gorm:"size:1024" json:"address"`
	DepartmentID *string   `gorm:"type:uuid;index" json:"department_id,omitempty"`
	OwnerID      string    `gorm:"type:uuid;index" json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (l *Location) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
