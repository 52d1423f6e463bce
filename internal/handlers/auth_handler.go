package handlers

import (
	"errors"
	"time"

	"github.com/clinicore/clinic-backend/internal/config"
	"github.com/clinicore/clinic-backend/internal/dto"
	"github.com/clinicore/clinic-backend/internal/middleware"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/clinicore/clinic-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	auth     *services.AuthService
	totp     *services.TOTPService
	sessions *services.SessionService
	cfg      *config.Config
}

func NewAuthHandler(auth *services.AuthService, totp *services.TOTPService, sessions *services.SessionService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{auth: auth, totp: totp, sessions: sessions, cfg: cfg}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid request body")
	}

	user, err := h.auth.Register(req.Email, req.Password, req.Specialty, req.Role)
	if err != nil {
		if errors.Is(err, services.ErrAccountExists) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Code: dto.CodeAccountExists, Message: "Account already exists",
			})
		}
		return h.writeAuthError(c, err)
	}

	return c.JSON(dto.OkResponse{OK: true, Role: user.Role})
}

func (h *AuthHandler) LoginPassword(c *fiber.Ctx) error {
	var req dto.PasswordLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid request body")
	}

	user, token, err := h.auth.LoginPassword(req.Email, req.Password)
	if err != nil {
		return h.writeAuthError(c, err)
	}

	h.setSessionCookie(c, token)
	return c.JSON(dto.OkResponse{OK: true, Role: user.Role})
}

func (h *AuthHandler) Start(c *fiber.Ctx) error {
	var req dto.StartRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid request body")
	}

	result, err := h.totp.Start(req.Email, req.Force)
	if err != nil {
		return h.writeAuthError(c, err)
	}

	return c.JSON(dto.StartResponse{
		Mode:       result.Mode,
		OtpauthURL: result.OtpauthURL,
		Secret:     result.Secret,
	})
}

func (h *AuthHandler) VerifyEnroll(c *fiber.Ctx) error {
	var req dto.CodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid request body")
	}

	user, token, err := h.totp.VerifyEnroll(req.Email, req.Code)
	if err != nil {
		return h.writeAuthError(c, err)
	}

	h.setSessionCookie(c, token)
	return c.JSON(dto.OkResponse{OK: true, Role: user.Role})
}

func (h *AuthHandler) LoginTOTP(c *fiber.Ctx) error {
	var req dto.CodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid request body")
	}

	user, token, err := h.totp.Login(req.Email, req.Code)
	if err != nil {
		return h.writeAuthError(c, err)
	}

	h.setSessionCookie(c, token)
	return c.JSON(dto.OkResponse{OK: true, Role: user.Role})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return c.JSON(dto.MeResponse{User: nil})
	}
	return c.JSON(dto.MeResponse{User: userResponse(user)})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if raw := c.Cookies(h.cfg.CookieName); raw != "" {
		if err := h.sessions.Revoke(raw); err != nil {
			return internalError(c)
		}
	}
	h.clearSessionCookie(c)
	return c.JSON(dto.OkResponse{OK: true})
}

// writeAuthError maps service sentinels to the stable wire codes. Anything
// unrecognized is a generic 500 with no internals leaked.
func (h *AuthHandler) writeAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidEmail):
		return badRequest(c, dto.CodeInvalidEmail, "A valid email is required")
	case errors.Is(err, services.ErrInvalidInput):
		return badRequest(c, dto.CodeInvalidInput, "Invalid input")
	case errors.Is(err, services.ErrInvalidCredentials):
		return badRequest(c, dto.CodeInvalidCredentials, "Invalid email or password")
	case errors.Is(err, services.ErrInvalidCode):
		return badRequest(c, dto.CodeInvalidCode, "Invalid verification code")
	case errors.Is(err, services.ErrEnrollRequired):
		return badRequest(c, dto.CodeEnrollRequired, "Authenticator enrollment required")
	default:
		return internalError(c)
	}
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string) {
	sameSite := fiber.CookieSameSiteLaxMode
	if h.cfg.CookieSecure {
		// Cross-site SPA deployments need None, which requires Secure.
		sameSite = fiber.CookieSameSiteNoneMode
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL / time.Second),
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSite,
	})
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
	})
}

func userResponse(user *models.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Specialty: user.Specialty,
		Role:      user.Role,
		ClinicID:  user.ClinicID,
	}
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Code: code, Message: message,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Code: dto.CodeInternal, Message: "Internal server error",
	})
}
