package services

import (
	"testing"
	"time"

	"github.com/clinicore/clinic-backend/internal/clinic"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/clinicore/clinic-backend/internal/secrets"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.StaffInvite{},
		&models.Clinic{},
		&models.AuditLog{},
		&models.SystemLog{},
	))
	return db
}

type testStack struct {
	db       *gorm.DB
	cipher   *secrets.Cipher
	sessions *SessionService
	invites  *InviteService
	clinics  *clinic.Service
	auth     *AuthService
	totp     *TOTPService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	cipher, err := secrets.NewCipher(secrets.DeriveKey("test-master-secret", "test-salt"))
	require.NoError(t, err)

	sessions := NewSessionService(db, 7*24*time.Hour)
	invites := NewInviteService(db)
	clinics := clinic.NewService(db)

	return &testStack{
		db:       db,
		cipher:   cipher,
		sessions: sessions,
		invites:  invites,
		clinics:  clinics,
		auth:     NewAuthService(db, sessions, invites, clinics),
		totp:     NewTOTPService(db, cipher, sessions, invites, clinics),
	}
}

func registerAdmin(t *testing.T, s *testStack, email string) *models.User {
	t.Helper()
	admin, err := s.auth.Register(email, "secret1", "", models.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, admin.ClinicID)
	return admin
}

func (s *testStack) mustUser(t *testing.T, email string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, s.db.Where("email = ?", email).First(&user).Error)
	return &user
}
