package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session backs a browser login. Unlike Token it has no refresh concept;
// an expired session means a fresh login.
type Session struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       string    `gorm:"type:uuid;index;not null" json:"user_id"`
	SessionToken string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	IsAdmin      bool      `gorm:"default:false" json:"is_admin"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
