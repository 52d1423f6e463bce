package handlers

import (
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// DebugHandler exposes row counts for local development. Mounted only when
// DEBUG_ENDPOINTS is set; never enabled in production.
type DebugHandler struct {
	db *gorm.DB
}

func NewDebugHandler(db *gorm.DB) *DebugHandler {
	return &DebugHandler{db: db}
}

func (h *DebugHandler) State(c *fiber.Ctx) error {
	counts := make(map[string]int64, 4)
	for name, model := range map[string]interface{}{
		"users":         &models.User{},
		"sessions":      &models.Session{},
		"staff_invites": &models.StaffInvite{},
		"clinics":       &models.Clinic{},
		"audit_logs":    &models.AuditLog{},
	} {
		var n int64
		if err := h.db.Model(model).Count(&n).Error; err != nil {
			return internalError(c)
		}
		counts[name] = n
	}
	return c.JSON(fiber.Map{"counts": counts})
}

// Sessions lists live session rows. Token hashes are omitted even here.
func (h *DebugHandler) Sessions(c *fiber.Ctx) error {
	var rows []models.Session
	if err := h.db.Order("created_at DESC").Limit(100).Find(&rows).Error; err != nil {
		return internalError(c)
	}
	out := make([]fiber.Map, 0, len(rows))
	for _, s := range rows {
		out = append(out, fiber.Map{
			"id":         s.ID,
			"user_id":    s.UserID,
			"expires_at": s.ExpiresAt,
			"created_at": s.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"sessions": out})
}
