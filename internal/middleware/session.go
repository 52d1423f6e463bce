package middleware

import (
	"github.com/clinicore/clinic-backend/internal/dto"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/clinicore/clinic-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

const userLocalKey = "current_user"

// SessionAuth resolves the session cookie into a user and stores it in
// locals. Soft: unauthenticated requests pass through with no user so that
// public routes and the audit interceptor still work; protected routes stack
// RequireAuth on top.
func SessionAuth(sessions *services.SessionService, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Cookies(cookieName); raw != "" {
			if user, err := sessions.Validate(raw); err == nil {
				c.Locals(userLocalKey, user)
			}
		}
		return c.Next()
	}
}

// RequireAuth rejects requests that did not resolve a valid session.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Code: dto.CodeUnauthorized, Message: "Authentication required",
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the session user resolved by SessionAuth, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	if user, ok := c.Locals(userLocalKey).(*models.User); ok {
		return user
	}
	return nil
}
