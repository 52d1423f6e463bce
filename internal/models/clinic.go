package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Clinic is the tenant boundary. Every admin owns exactly one clinic; the
// unique index on OwnerUserID is what makes lazy auto-creation idempotent.
type Clinic struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	Address      string         `gorm:"size:512" json:"address"`
	Timezone     string         `gorm:"size:64;default:'UTC'" json:"timezone"`
	ContactEmail string         `gorm:"size:255" json:"contact_email"`
	Settings     datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"settings"`
	OwnerUserID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"owner_user_id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
