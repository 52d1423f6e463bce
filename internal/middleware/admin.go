package middleware

import (
	"strings"

	"github.com/clinicore/clinic-backend/internal/config"
	"github.com/clinicore/clinic-backend/internal/dto"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired allows users whose role is admin, plus any email on the
// config-based ADMIN_EMAILS allowlist. Must run after SessionAuth.
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)

	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Code: dto.CodeUnauthorized, Message: "Authentication required",
			})
		}

		if user.Role == models.RoleAdmin || contains(adminEmails, user.Email) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Code: dto.CodeForbidden, Message: "Admin access required",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(p))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
