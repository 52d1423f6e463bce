package models

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles. New users default to RoleDoctor unless an invite says otherwise.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleReceptionist = "receptionist"
)

// ValidRole reports whether r is one of the known staff roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleDoctor || r == RoleReceptionist
}

// User is a staff identity record. Emails are normalized to lowercase before
// they reach this row, so equality lookups are case-insensitive.
//
// The two TOTP ciphertext columns encode the enrollment state machine; services
// decode them into an explicit state and never interpret the raw columns
// directly outside the storage boundary.
type User struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email                   string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash            string     `gorm:"size:512" json:"-"`
	TOTPEnabled             bool       `gorm:"not null;default:false" json:"-"`
	TOTPSecretEncrypted     *string    `gorm:"size:512" json:"-"`
	TOTPTempSecretEncrypted *string    `gorm:"size:512" json:"-"`
	Role                    string     `gorm:"size:20;not null;default:'doctor'" json:"role"`
	ClinicID                *uuid.UUID `gorm:"type:uuid;index" json:"clinic_id"`
	Specialty               string     `gorm:"size:100" json:"specialty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}
