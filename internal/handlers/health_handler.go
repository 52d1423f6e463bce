package handlers

import (
	"time"

	"github.com/clinicore/clinic-backend/internal/database"
	"github.com/clinicore/clinic-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	overall := "ok"
	dbStatus := "ok"
	status := fiber.StatusOK
	if err := database.Ping(); err != nil {
		overall = "degraded"
		dbStatus = "unreachable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(dto.HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
