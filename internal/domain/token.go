package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Token is a bearer credential pair bound to one user. Both strings are
// opaque fixed-length values; lookup is exact-match on the stored form.
type Token struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string    `gorm:"type:uuid;index;not null" json:"user_id"`
	AccessToken      string    `gorm:"size:64;uniqueIndex;not null" json:"access_token"`
	RefreshToken     string    `gorm:"size:64;uniqueIndex;not null" json:"refresh_token"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	AccessExpiresAt  time.Time `gorm:"not null" json:"access_expires_at"`
	RefreshExpiresAt time.Time `gorm:"not null" json:"refresh_expires_at"`
}

func (t *Token) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *Token) AccessExpired(now time.Time) bool {
	return now.After(t.AccessExpiresAt)
}

func (t *Token) RefreshExpired(now time.Time) bool {
	return now.After(t.RefreshExpiresAt)
}

// Expired reports whether either half of the pair has passed its expiry.
func (t *Token) Expired(now time.Time) bool {
	return t.AccessExpired(now) || t.RefreshExpired(now)
}

// BlacklistToken records a token revoked ahead of its natural expiry.
type BlacklistToken struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TokenID   *string   `gorm:"type:uuid;index" json:"token_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BlacklistToken) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
