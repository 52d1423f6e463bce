package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one observed request/response pair. Append-only: the
// application never updates or deletes these rows.
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Method    string     `gorm:"size:10;not null" json:"method"`
	Path      string     `gorm:"size:512;not null" json:"path"`
	Status    int        `gorm:"not null" json:"status"`
	ClientIP  string     `gorm:"size:64" json:"client_ip"`
	UserAgent string     `gorm:"size:512" json:"user_agent"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}
