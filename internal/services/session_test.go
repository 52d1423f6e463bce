package services

import (
	"testing"
	"time"

	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, s *testStack, email string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: email, Role: models.RoleDoctor}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

func TestSessionIssueAndValidate(t *testing.T) {
	s := newTestStack(t)
	user := createUser(t, s, "doc@example.com")

	token, err := s.sessions.Issue(user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := s.sessions.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// The raw token is never persisted.
	var count int64
	require.NoError(t, s.db.Model(&models.Session{}).Where("token_hash = ?", token).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSessionValidateUnknownToken(t *testing.T) {
	s := newTestStack(t)

	_, err := s.sessions.Validate("not-a-real-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.sessions.Validate("")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionLazyExpiry(t *testing.T) {
	s := newTestStack(t)
	user := createUser(t, s, "doc@example.com")

	short := NewSessionService(s.db, time.Millisecond)
	token, err := short.Issue(user.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = short.Validate(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The stale row was removed opportunistically.
	var count int64
	require.NoError(t, s.db.Model(&models.Session{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSessionRevoke(t *testing.T) {
	s := newTestStack(t)
	user := createUser(t, s, "doc@example.com")

	token, err := s.sessions.Issue(user.ID)
	require.NoError(t, err)

	require.NoError(t, s.sessions.Revoke(token))

	_, err = s.sessions.Validate(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Revoking again is a no-op.
	require.NoError(t, s.sessions.Revoke(token))
}

func TestSessionRevokeAll(t *testing.T) {
	s := newTestStack(t)
	user := createUser(t, s, "doc@example.com")
	other := createUser(t, s, "other@example.com")

	t1, err := s.sessions.Issue(user.ID)
	require.NoError(t, err)
	t2, err := s.sessions.Issue(user.ID)
	require.NoError(t, err)
	t3, err := s.sessions.Issue(other.ID)
	require.NoError(t, err)

	require.NoError(t, s.sessions.RevokeAll(user.ID))

	_, err = s.sessions.Validate(t1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.sessions.Validate(t2)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Other users' sessions survive.
	got, err := s.sessions.Validate(t3)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)
}

func TestSessionExpiryIsAbsolute(t *testing.T) {
	s := newTestStack(t)
	user := createUser(t, s, "doc@example.com")

	token, err := s.sessions.Issue(user.ID)
	require.NoError(t, err)

	var before models.Session
	require.NoError(t, s.db.Where("user_id = ?", user.ID).First(&before).Error)

	// Validation must not slide the expiry.
	_, err = s.sessions.Validate(token)
	require.NoError(t, err)

	var after models.Session
	require.NoError(t, s.db.Where("user_id = ?", user.ID).First(&after).Error)
	assert.True(t, before.ExpiresAt.Equal(after.ExpiresAt))
}
