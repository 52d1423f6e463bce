package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clinicore/clinic-backend/internal/clinic"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthService handles registration and password login. TOTP flows live in
// TOTPService; both share the same session and invite services.
type AuthService struct {
	db       *gorm.DB
	sessions *SessionService
	invites  *InviteService
	clinics  *clinic.Service
}

func NewAuthService(db *gorm.DB, sessions *SessionService, invites *InviteService, clinics *clinic.Service) *AuthService {
	return &AuthService{db: db, sessions: sessions, invites: invites, clinics: clinics}
}

// Register creates a user with a hashed password, applies any pending invite
// for the email, and lazily creates the clinic for admins. Registration does
// not issue a session; the client logs in afterwards.
func (s *AuthService) Register(email, password, specialty, role string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLen)
	}
	if role == "" {
		role = models.RoleDoctor
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	var existing models.User
	err = s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		// An auto-provisioned authenticator user without a password may still
		// claim the account by setting one.
		if existing.PasswordHash != "" {
			return nil, ErrAccountExists
		}
		return s.claimProvisionedUser(&existing, password, specialty)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Specialty:    specialty,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.invites.ApplyToNewUser(email, user.ID); err != nil {
		return nil, err
	}
	if err := s.db.First(&user, "id = ?", user.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}

	if err := s.clinics.EnsureForAdmin(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *AuthService) claimProvisionedUser(user *models.User, password, specialty string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	updates := map[string]interface{}{"password_hash": hash}
	if specialty != "" {
		updates["specialty"] = specialty
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to set password: %w", err)
	}
	if err := s.db.First(user, "id = ?", user.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	return user, nil
}

// LoginPassword verifies credentials and issues a session. Unknown email and
// wrong password are deliberately indistinguishable to the caller.
func (s *AuthService) LoginPassword(email, password string) (*models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if user.PasswordHash == "" || !VerifyPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	if err := s.clinics.EnsureForAdmin(&user); err != nil {
		return nil, "", err
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// normalizeEmail lowercases and trims an email so every store lookup is
// case-insensitive by construction.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
