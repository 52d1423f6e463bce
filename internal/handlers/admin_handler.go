package handlers

import (
	"errors"
	"time"

	"github.com/clinicore/clinic-backend/internal/audit"
	"github.com/clinicore/clinic-backend/internal/clinic"
	"github.com/clinicore/clinic-backend/internal/dto"
	"github.com/clinicore/clinic-backend/internal/middleware"
	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/clinicore/clinic-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db      *gorm.DB
	invites *services.InviteService
	clinics *clinic.Service
}

func NewAdminHandler(db *gorm.DB, invites *services.InviteService, clinics *clinic.Service) *AdminHandler {
	return &AdminHandler{db: db, invites: invites, clinics: clinics}
}

func (h *AdminHandler) CreateInvite(c *fiber.Ctx) error {
	admin := middleware.CurrentUser(c)

	var req dto.CreateInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid request body")
	}

	// Allowlisted admins may not have touched an admin flow yet.
	if admin.ClinicID == nil {
		if err := h.clinics.EnsureForAdmin(admin); err != nil || admin.ClinicID == nil {
			return internalError(c)
		}
	}

	invite, err := h.invites.CreateInvite(*admin.ClinicID, req.Email, req.Role, req.ExpiresDays, admin.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEmail):
			return badRequest(c, dto.CodeInvalidEmail, "A valid email is required")
		case errors.Is(err, services.ErrInvalidInput):
			return badRequest(c, dto.CodeInvalidInput, err.Error())
		default:
			return internalError(c)
		}
	}

	return c.JSON(fiber.Map{"ok": true, "invite": inviteResponse(invite)})
}

func (h *AdminHandler) RevokeInvite(c *fiber.Ctx) error {
	inviteID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, dto.CodeInvalidInput, "Invalid invite id")
	}

	if err := h.invites.Revoke(inviteID); err != nil {
		switch {
		case errors.Is(err, services.ErrInviteNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Code: dto.CodeNotFound, Message: "Invite not found",
			})
		case errors.Is(err, services.ErrInviteNotPending):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Code: dto.CodeConflict, Message: "Invite is not pending",
			})
		default:
			return internalError(c)
		}
	}

	return c.JSON(dto.OkResponse{OK: true})
}

func (h *AdminHandler) ListInvites(c *fiber.Ctx) error {
	admin := middleware.CurrentUser(c)
	if admin.ClinicID == nil {
		return c.JSON(fiber.Map{"invites": []dto.InviteResponse{}})
	}

	invites, err := h.invites.ListForClinic(*admin.ClinicID)
	if err != nil {
		return internalError(c)
	}

	out := make([]dto.InviteResponse, 0, len(invites))
	for i := range invites {
		out = append(out, *inviteResponse(&invites[i]))
	}
	return c.JSON(fiber.Map{"invites": out})
}

func (h *AdminHandler) ListAudit(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, dto.CodeInvalidInput, "before must be RFC 3339")
		}
		before = &t
	}

	logs, err := audit.List(h.db, limit, before)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(fiber.Map{"logs": logs})
}

func inviteResponse(invite *models.StaffInvite) *dto.InviteResponse {
	return &dto.InviteResponse{
		ID:        invite.ID,
		ClinicID:  invite.ClinicID,
		Email:     invite.Email,
		Role:      invite.Role,
		Code:      invite.Code,
		Status:    invite.Status,
		ExpiresAt: invite.ExpiresAt,
	}
}
