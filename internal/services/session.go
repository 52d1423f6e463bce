package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService issues and validates opaque bearer sessions. The raw token is
// returned exactly once to the caller; only its SHA-256 hex ever touches the
// database. TTL is absolute from issuance, no sliding renewal.
type SessionService struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewSessionService(db *gorm.DB, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &SessionService{db: db, ttl: ttl}
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue persists a new session row and returns the raw token. The row is
// durable before the token is handed back, so a cookie is never written for a
// session that might not exist.
func (s *SessionService) Issue(userID uuid.UUID) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	rawToken := base64.RawURLEncoding.EncodeToString(rawBytes)

	record := models.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return rawToken, nil
}

// Validate resolves a raw token to its owning user. An expired-but-present row
// is treated identically to an absent one (lazy expiry); the stale row is
// deleted opportunistically.
func (s *SessionService) Validate(rawToken string) (*models.User, error) {
	if rawToken == "" {
		return nil, ErrUnauthorized
	}

	var session models.Session
	if err := s.db.Where("token_hash = ?", hashToken(rawToken)).First(&session).Error; err != nil {
		return nil, ErrUnauthorized
	}

	if time.Now().After(session.ExpiresAt) {
		s.db.Delete(&session)
		return nil, ErrUnauthorized
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return &user, nil
}

// Revoke deletes the session matching the raw token (logout). Unknown tokens
// are a no-op.
func (s *SessionService) Revoke(rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.db.Where("token_hash = ?", hashToken(rawToken)).Delete(&models.Session{}).Error
}

// RevokeAll deletes every session of a user (credential reset, admin-forced
// logout, account removal).
func (s *SessionService) RevokeAll(userID uuid.UUID) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.Session{}).Error
}

// StartReaper deletes expired session rows daily. Storage hygiene only;
// validation is already correct without it.
func (s *SessionService) StartReaper(done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				result := s.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{})
				if result.Error != nil {
					slog.Error("session reaper failed", "error", result.Error)
				} else if result.RowsAffected > 0 {
					slog.Info("session reaper completed", "deleted", result.RowsAffected)
				}
			case <-done:
				return
			}
		}
	}()
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
