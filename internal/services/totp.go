package services

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/clinicore/clinic-backend/internal/clinic"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/clinicore/clinic-backend/internal/secrets"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

const totpIssuer = "Clinicore"

// totpState is the explicit enrollment state decoded from the two nullable
// ciphertext columns. Illegal column combinations normalize to the safest
// state instead of being interpreted.
type totpState int

const (
	totpUnenrolled totpState = iota
	totpPendingEnrollment
	totpEnrolled
)

func totpStateOf(user *models.User) totpState {
	if user.TOTPEnabled && user.TOTPSecretEncrypted != nil {
		return totpEnrolled
	}
	if user.TOTPTempSecretEncrypted != nil {
		return totpPendingEnrollment
	}
	// Covers "enabled but no secret": treat as unenrolled rather than guess.
	return totpUnenrolled
}

// StartResult tells the caller which flow to continue. Secret and OtpauthURL
// are set only in enroll mode, the single moment the plaintext secret leaves
// the server.
type StartResult struct {
	Mode       string
	OtpauthURL string
	Secret     string
}

// TOTPService drives authenticator enrollment and code login, RFC 6238 with a
// 30-second step and a +/-1 step verification window.
type TOTPService struct {
	db       *gorm.DB
	cipher   *secrets.Cipher
	sessions *SessionService
	invites  *InviteService
	clinics  *clinic.Service
}

func NewTOTPService(db *gorm.DB, cipher *secrets.Cipher, sessions *SessionService, invites *InviteService, clinics *clinic.Service) *TOTPService {
	return &TOTPService{db: db, cipher: cipher, sessions: sessions, invites: invites, clinics: clinics}
}

// Start begins or resumes the authenticator flow for an email, provisioning
// the user if this is their first touch.
//
//   - Enrolled, not forced: code mode, no state change.
//   - Forced: all TOTP state cleared first, then a fresh enrollment.
//   - Pending, not forced: the existing pending secret is re-displayed so a
//     page reload never hands out a second, incompatible secret.
//   - Otherwise: a fresh secret is generated, encrypted, and stored as temp.
func (s *TOTPService) Start(email string, force bool) (*StartResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.findOrCreateUser(email)
	if err != nil {
		return nil, err
	}

	if force && totpStateOf(user) != totpUnenrolled {
		if err := s.clearTOTPState(user); err != nil {
			return nil, err
		}
	}

	switch totpStateOf(user) {
	case totpEnrolled:
		return &StartResult{Mode: "code"}, nil

	case totpPendingEnrollment:
		secret, err := s.cipher.Decrypt(*user.TOTPTempSecretEncrypted)
		if err == nil {
			return &StartResult{
				Mode:       "enroll",
				OtpauthURL: provisioningURL(email, string(secret)),
				Secret:     string(secret),
			}, nil
		}
		// Corrupt temp ciphertext self-heals into a fresh enrollment.
		if err := s.clearTOTPState(user); err != nil {
			return nil, err
		}
		fallthrough

	default:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      totpIssuer,
			AccountName: email,
			Period:      30,
			SecretSize:  20,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
		}

		encrypted, err := s.cipher.Encrypt([]byte(key.Secret()))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
		}

		if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"totp_enabled":               false,
			"totp_secret_encrypted":      nil,
			"totp_temp_secret_encrypted": encrypted,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to store pending secret: %w", err)
		}

		return &StartResult{
			Mode:       "enroll",
			OtpauthURL: key.URL(),
			Secret:     key.Secret(),
		}, nil
	}
}

// VerifyEnroll checks a code against the pending secret and, on success,
// promotes it to the permanent slot atomically, then issues a session.
func (s *TOTPService) VerifyEnroll(email, code string) (*models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, "", ErrEnrollRequired
	}
	if totpStateOf(&user) != totpPendingEnrollment {
		return nil, "", ErrEnrollRequired
	}

	encrypted := *user.TOTPTempSecretEncrypted
	secret, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		// Self-heal: the temp blob cannot be used, clear it so the next start
		// generates a fresh one.
		if clearErr := s.clearTOTPState(&user); clearErr != nil {
			return nil, "", clearErr
		}
		return nil, "", ErrEnrollRequired
	}

	if !validateCode(code, string(secret)) {
		return nil, "", ErrInvalidCode
	}

	// Promotion is one row-atomic write: enabled, permanent set, temp cleared
	// together so no reader ever sees an illegal combination.
	err = s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"totp_enabled":               true,
		"totp_secret_encrypted":      encrypted,
		"totp_temp_secret_encrypted": nil,
	}).Error
	if err != nil {
		return nil, "", fmt.Errorf("failed to complete enrollment: %w", err)
	}
	user.TOTPEnabled = true
	user.TOTPSecretEncrypted = &encrypted
	user.TOTPTempSecretEncrypted = nil

	return s.finishLogin(&user)
}

// Login validates a code against the permanent secret and issues a session.
// Unenrolled users get ErrEnrollRequired, the signal to switch into the
// enrollment flow.
func (s *TOTPService) Login(email, code string) (*models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, "", ErrEnrollRequired
	}
	if totpStateOf(&user) != totpEnrolled {
		return nil, "", ErrEnrollRequired
	}

	secret, err := s.cipher.Decrypt(*user.TOTPSecretEncrypted)
	if err != nil {
		// A corrupt permanent secret can never verify again; clear it and
		// degrade to the enrollment flow instead of failing forever.
		if clearErr := s.clearTOTPState(&user); clearErr != nil {
			return nil, "", clearErr
		}
		return nil, "", ErrEnrollRequired
	}

	if !validateCode(code, string(secret)) {
		return nil, "", ErrInvalidCode
	}

	return s.finishLogin(&user)
}

func (s *TOTPService) finishLogin(user *models.User) (*models.User, string, error) {
	if err := s.clinics.EnsureForAdmin(user); err != nil {
		return nil, "", err
	}
	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *TOTPService) findOrCreateUser(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = models.User{
		ID:    uuid.New(),
		Email: email,
		Role:  models.RoleDoctor,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	if err := s.invites.ApplyToNewUser(email, user.ID); err != nil {
		return nil, err
	}
	// Re-read: an invite may have changed role/clinic.
	if err := s.db.First(&user, "id = ?", user.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	return &user, nil
}

func (s *TOTPService) clearTOTPState(user *models.User) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"totp_enabled":               false,
		"totp_secret_encrypted":      nil,
		"totp_temp_secret_encrypted": nil,
	}).Error; err != nil {
		return fmt.Errorf("failed to clear TOTP state: %w", err)
	}
	user.TOTPEnabled = false
	user.TOTPSecretEncrypted = nil
	user.TOTPTempSecretEncrypted = nil
	return nil
}

// validateCode accepts the previous, current, and next 30-second step to
// tolerate clock drift, and no wider.
func validateCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// provisioningURL rebuilds an otpauth:// URI for an already-generated secret
// (pending-enrollment re-display).
func provisioningURL(email, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", totpIssuer)
	v.Set("period", "30")
	v.Set("digits", "6")
	v.Set("algorithm", "SHA1")
	return "otpauth://totp/" + url.PathEscape(totpIssuer+":"+email) + "?" + v.Encode()
}
