package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	minInviteDays     = 1
	maxInviteDays     = 60
	defaultInviteDays = 14
)

// InviteService issues and consumes staff invitations that grant a role and
// clinic membership at registration time.
type InviteService struct {
	db *gorm.DB
}

func NewInviteService(db *gorm.DB) *InviteService {
	return &InviteService{db: db}
}

// CreateInvite creates a pending invite with a random opaque code. Expiry is
// bounded to 1-60 days; zero means the 14-day default.
func (s *InviteService) CreateInvite(clinicID uuid.UUID, email, role string, expiresDays int, createdBy uuid.UUID) (*models.StaffInvite, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if expiresDays == 0 {
		expiresDays = defaultInviteDays
	}
	if expiresDays < minInviteDays || expiresDays > maxInviteDays {
		return nil, fmt.Errorf("%w: expiry must be between %d and %d days", ErrInvalidInput, minInviteDays, maxInviteDays)
	}

	codeBytes := make([]byte, 24)
	if _, err := rand.Read(codeBytes); err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	invite := models.StaffInvite{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		Email:     email,
		Role:      role,
		Code:      base64.RawURLEncoding.EncodeToString(codeBytes),
		Status:    models.InviteStatusPending,
		ExpiresAt: time.Now().AddDate(0, 0, expiresDays),
		CreatedBy: createdBy,
	}
	if err := s.db.Create(&invite).Error; err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}
	return &invite, nil
}

// Revoke transitions a pending invite to revoked. Any other state is an
// error: transitions are one-way and never rewound.
func (s *InviteService) Revoke(inviteID uuid.UUID) error {
	var invite models.StaffInvite
	if err := s.db.First(&invite, "id = ?", inviteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("failed to load invite: %w", err)
	}
	if invite.Status != models.InviteStatusPending {
		return ErrInviteNotPending
	}
	return s.db.Model(&invite).Update("status", models.InviteStatusRevoked).Error
}

// ApplyToNewUser consumes the most-recently-created pending invite for the
// email, if any. A past-expiry invite is marked expired and treated as absent
// (lazy expiry, mirrors session semantics). Otherwise the user's role (and
// clinic, only if they had none) and the invite's acceptance are written in
// one transaction, so a reader never observes one without the other.
func (s *InviteService) ApplyToNewUser(email string, userID uuid.UUID) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	var invite models.StaffInvite
	err = s.db.Where("email = ? AND status = ?", email, models.InviteStatusPending).
		Order("created_at DESC").First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up invite: %w", err)
	}

	if time.Now().After(invite.ExpiresAt) {
		return s.db.Model(&invite).Update("status", models.InviteStatusExpired).Error
	}

	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to load invited user: %w", err)
		}

		updates := map[string]interface{}{"role": invite.Role}
		if user.ClinicID == nil {
			updates["clinic_id"] = invite.ClinicID
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to apply invite role: %w", err)
		}

		return tx.Model(&invite).Updates(map[string]interface{}{
			"status":      models.InviteStatusAccepted,
			"accepted_by": userID,
			"accepted_at": now,
		}).Error
	})
}

// ListForClinic returns a clinic's invites, newest first.
func (s *InviteService) ListForClinic(clinicID uuid.UUID) ([]models.StaffInvite, error) {
	var invites []models.StaffInvite
	err := s.db.Where("clinic_id = ?", clinicID).Order("created_at DESC").Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}
