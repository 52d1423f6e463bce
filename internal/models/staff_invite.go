package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite statuses. Transitions are one-way: pending -> accepted|revoked|expired.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
	InviteStatusExpired  = "expired"
)

// StaffInvite pre-authorizes an email to receive a role and clinic membership
// on registration. Consumed at most once; expiry is applied lazily at
// acceptance time.
type StaffInvite struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"clinic_id"`
	Email      string     `gorm:"not null;size:255;index" json:"email"`
	Role       string     `gorm:"size:20;not null" json:"role"`
	Code       string     `gorm:"size:64;not null" json:"code"`
	Status     string     `gorm:"size:16;not null;default:'pending';index" json:"status"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	CreatedBy  uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	AcceptedBy *uuid.UUID `gorm:"type:uuid" json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
