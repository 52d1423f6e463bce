package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinicore/clinic-backend/internal/clinic"
	"github.com/clinicore/clinic-backend/internal/config"
	"github.com/clinicore/clinic-backend/internal/handlers"
	"github.com/clinicore/clinic-backend/internal/middleware"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/clinicore/clinic-backend/internal/routes"
	"github.com/clinicore/clinic-backend/internal/secrets"
	"github.com/clinicore/clinic-backend/internal/services"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.StaffInvite{},
		&models.Clinic{},
		&models.AuditLog{},
	))

	cfg := &config.Config{
		SessionTTL:  7 * 24 * time.Hour,
		CookieName:  "clinic_session",
		CORSOrigins: "http://localhost:5173",
	}

	cipher, err := secrets.NewCipher(secrets.DeriveKey("test-master-secret", "test-salt"))
	require.NoError(t, err)

	sessions := services.NewSessionService(db, cfg.SessionTTL)
	invites := services.NewInviteService(db)
	clinics := clinic.NewService(db)
	authService := services.NewAuthService(db, sessions, invites, clinics)
	totpService := services.NewTOTPService(db, cipher, sessions, invites, clinics)

	app := fiber.New()
	app.Use(middleware.SessionAuth(sessions, cfg.CookieName))

	routes.Setup(app, cfg,
		handlers.NewAuthHandler(authService, totpService, sessions, cfg),
		handlers.NewAdminHandler(db, invites, clinics),
		handlers.NewHealthHandler(),
		handlers.NewDebugHandler(db),
	)

	return &testApp{app: app, db: db, cfg: cfg}
}

func (ta *testApp) request(t *testing.T, method, path string, body interface{}, cookie string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: ta.cfg.CookieName, Value: cookie})
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func sessionCookie(t *testing.T, ta *testApp, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == ta.cfg.CookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func TestRegisterAndPasswordLoginFlow(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "doc@example.com", "password": "secret1", "role": "doctor",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "doctor", body["role"])

	// Wrong password: generic code, no session cookie.
	resp, body = ta.request(t, "POST", "/api/auth/login-password", map[string]interface{}{
		"email": "doc@example.com", "password": "wrong",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["code"])
	assert.Empty(t, resp.Cookies())

	resp, body = ta.request(t, "POST", "/api/auth/login-password", map[string]interface{}{
		"email": "doc@example.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "doctor", body["role"])
	cookie := sessionCookie(t, ta, resp)

	resp, body = ta.request(t, "GET", "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "doc@example.com", user["email"])
	assert.Equal(t, "doctor", user["role"])

	resp, _ = ta.request(t, "POST", "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = ta.request(t, "GET", "/api/auth/me", nil, cookie)
	assert.Nil(t, body["user"])
}

func TestRegisterConflictAndValidation(t *testing.T) {
	ta := newTestApp(t)

	resp, _ := ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "doc@example.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "doc@example.com", "password": "secret2",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "account_exists", body["code"])

	resp, body = ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "bad", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_email", body["code"])
}

func TestTOTPEnrollAndLoginFlow(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, "POST", "/api/auth/start", map[string]interface{}{
		"email": "a@b.com",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "enroll", body["mode"])
	secret := body["secret"].(string)
	require.NotEmpty(t, secret)
	assert.Contains(t, body["otpauthUrl"].(string), "otpauth://totp/")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	resp, body = ta.request(t, "POST", "/api/auth/verify-enroll", map[string]interface{}{
		"email": "a@b.com", "code": code,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	cookie := sessionCookie(t, ta, resp)

	_, body = ta.request(t, "GET", "/api/auth/me", nil, cookie)
	require.NotNil(t, body["user"])

	// Enrolled: start switches to code mode.
	resp, body = ta.request(t, "POST", "/api/auth/start", map[string]interface{}{
		"email": "a@b.com",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "code", body["mode"])
	assert.Empty(t, body["secret"])

	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	resp, _ = ta.request(t, "POST", "/api/auth/login", map[string]interface{}{
		"email": "a@b.com", "code": code,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionCookie(t, ta, resp)
}

func TestTOTPLoginErrors(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, "POST", "/api/auth/login", map[string]interface{}{
		"email": "nobody@b.com", "code": "123456",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "enroll_required", body["code"])

	_, start := ta.request(t, "POST", "/api/auth/start", map[string]interface{}{
		"email": "a@b.com",
	}, "")
	secret := start["secret"].(string)

	good, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	bad := "000000"
	if bad == good {
		bad = "000001"
	}

	resp, body = ta.request(t, "POST", "/api/auth/verify-enroll", map[string]interface{}{
		"email": "a@b.com", "code": bad,
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_code", body["code"])
}

func TestAdminEndpointsRequireRole(t *testing.T) {
	ta := newTestApp(t)

	// No session at all.
	resp, body := ta.request(t, "GET", "/api/admin/audit", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["code"])

	ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "doc@example.com", "password": "secret1",
	}, "")
	resp, _ = ta.request(t, "POST", "/api/auth/login-password", map[string]interface{}{
		"email": "doc@example.com", "password": "secret1",
	}, "")
	docCookie := sessionCookie(t, ta, resp)

	resp, body = ta.request(t, "GET", "/api/admin/audit", nil, docCookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["code"])
}

func TestAdminInviteLifecycleOverHTTP(t *testing.T) {
	ta := newTestApp(t)

	ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "admin@clinic.com", "password": "secret1", "role": "admin",
	}, "")
	resp, _ := ta.request(t, "POST", "/api/auth/login-password", map[string]interface{}{
		"email": "admin@clinic.com", "password": "secret1",
	}, "")
	adminCookie := sessionCookie(t, ta, resp)

	resp, body := ta.request(t, "POST", "/api/admin/users/invite", map[string]interface{}{
		"email": "nurse@clinic.com", "role": "receptionist", "expiresDays": 14,
	}, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	invite := body["invite"].(map[string]interface{})
	assert.Equal(t, "pending", invite["status"])
	inviteID := invite["id"].(string)

	// Registration with the invited email picks up the invited role.
	resp, body = ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "nurse@clinic.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "receptionist", body["role"])

	// The consumed invite can no longer be revoked.
	resp, body = ta.request(t, "POST", "/api/admin/invites/"+inviteID+"/revoke", nil, adminCookie)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])

	_, body = ta.request(t, "GET", "/api/admin/invites", nil, adminCookie)
	invitesList := body["invites"].([]interface{})
	require.Len(t, invitesList, 1)
	assert.Equal(t, "accepted", invitesList[0].(map[string]interface{})["status"])
}

func TestAdminAuditListing(t *testing.T) {
	ta := newTestApp(t)

	ta.request(t, "POST", "/api/auth/register", map[string]interface{}{
		"email": "admin@clinic.com", "password": "secret1", "role": "admin",
	}, "")
	resp, _ := ta.request(t, "POST", "/api/auth/login-password", map[string]interface{}{
		"email": "admin@clinic.com", "password": "secret1",
	}, "")
	adminCookie := sessionCookie(t, ta, resp)

	require.NoError(t, ta.db.Create(&models.AuditLog{
		ID: uuid.New(), Method: "POST", Path: "/api/auth/login-password", Status: 200,
		ClientIP: "10.0.0.1", CreatedAt: time.Now(),
	}).Error)

	resp, body := ta.request(t, "GET", "/api/admin/audit?limit=10", nil, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := body["logs"].([]interface{})
	require.Len(t, logs, 1)
	assert.Equal(t, "/api/auth/login-password", logs[0].(map[string]interface{})["path"])
}
