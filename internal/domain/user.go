package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the identity record shared by the admin console and the API.
// The privilege flags are independent booleans, not a hierarchy: a
// superuser is not automatically an admin or staff user.
type User struct {
	ID          string       `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string       `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName   string       `gorm:"size:128" json:"first_name"`
	LastName    string       `gorm:"size:128" json:"last_name"`
	Password    string       `gorm:"size:255;not null" json:"-"`
	IsActive    bool         `gorm:"default:true" json:"is_active"`
	IsSuperuser bool         `gorm:"default:false" json:"is_superuser"`
	IsAdmin     bool         `gorm:"default:false" json:"is_admin"`
	IsStaffuser bool         `gorm:"default:false" json:"is_staffuser"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `gorm:"many2many:user_permissions" json:"permissions,omitempty"`
	Tokens      []Token      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// PermissionNames returns the names of the permissions loaded on the record.
func (u *User) PermissionNames() []string {
	names := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// Permission is a named capability granted to users. Names are unique
// across the whole system.
type Permission struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Permission) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
