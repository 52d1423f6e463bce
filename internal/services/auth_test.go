package services

import (
	"testing"

	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndPasswordLogin(t *testing.T) {
	s := newTestStack(t)

	user, err := s.auth.Register("doc@example.com", "secret1", "Cardiology", models.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, user.Role)
	assert.Equal(t, "Cardiology", user.Specialty)

	got, token, err := s.auth.LoginPassword("doc@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	resolved, err := s.sessions.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestLoginPasswordWrongPassword(t *testing.T) {
	s := newTestStack(t)

	_, err := s.auth.Register("doc@example.com", "secret1", "", "")
	require.NoError(t, err)

	_, _, err = s.auth.LoginPassword("doc@example.com", "secret2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginPasswordUnknownUser(t *testing.T) {
	s := newTestStack(t)

	// Unknown email and wrong password are the same error: no enumeration.
	_, _, err := s.auth.LoginPassword("ghost@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginPasswordPasswordlessUser(t *testing.T) {
	s := newTestStack(t)

	// Auto-provisioned via the authenticator flow, never set a password.
	_, err := s.totp.Start("a@b.com", false)
	require.NoError(t, err)

	_, _, err = s.auth.LoginPassword("a@b.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestStack(t)

	_, err := s.auth.Register("not-an-email", "secret1", "", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = s.auth.Register("doc@example.com", "short", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.auth.Register("doc@example.com", "secret1", "", "superuser")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestStack(t)

	_, err := s.auth.Register("doc@example.com", "secret1", "", "")
	require.NoError(t, err)

	_, err = s.auth.Register("doc@example.com", "secret2", "", "")
	assert.ErrorIs(t, err, ErrAccountExists)

	// Case-insensitive: same account.
	_, err = s.auth.Register("DOC@example.com", "secret2", "", "")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestRegisterClaimsProvisionedUser(t *testing.T) {
	s := newTestStack(t)

	_, err := s.totp.Start("a@b.com", false)
	require.NoError(t, err)

	// The passwordless auto-provisioned account may be claimed by setting a
	// password, not rejected as a duplicate.
	user, err := s.auth.Register("a@b.com", "secret1", "Dermatology", "")
	require.NoError(t, err)
	assert.Equal(t, "Dermatology", user.Specialty)

	_, _, err = s.auth.LoginPassword("a@b.com", "secret1")
	require.NoError(t, err)
}

func TestRegisterEmailCaseInsensitiveLogin(t *testing.T) {
	s := newTestStack(t)

	_, err := s.auth.Register("Doc@Example.com", "secret1", "", "")
	require.NoError(t, err)

	_, _, err = s.auth.LoginPassword("doc@EXAMPLE.com", "secret1")
	require.NoError(t, err)
}

func TestRegisterAdminGetsClinic(t *testing.T) {
	s := newTestStack(t)

	admin, err := s.auth.Register("admin@clinic.com", "secret1", "", models.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, admin.ClinicID)

	var clinicRow models.Clinic
	require.NoError(t, s.db.First(&clinicRow, "id = ?", *admin.ClinicID).Error)
	assert.Equal(t, admin.ID, clinicRow.OwnerUserID)
	assert.Equal(t, "admin@clinic.com", clinicRow.ContactEmail)

	// Lazy assignment is idempotent: logging in again never creates or
	// reassigns a clinic.
	again, _, err := s.auth.LoginPassword("admin@clinic.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, *admin.ClinicID, *again.ClinicID)

	var count int64
	require.NoError(t, s.db.Model(&models.Clinic{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterNonAdminGetsNoClinic(t *testing.T) {
	s := newTestStack(t)

	user, err := s.auth.Register("doc@example.com", "secret1", "", "")
	require.NoError(t, err)
	assert.Nil(t, user.ClinicID)
}
