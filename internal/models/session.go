package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side bearer-credential record. Only the SHA-256 hex of
// the raw token is stored; the raw token travels once to the client as a
// cookie value. Rows are created and deleted, never updated; expiry is
// absolute from issuance.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}
