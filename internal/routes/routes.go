package routes

import (
	"time"

	"github.com/clinicore/clinic-backend/internal/config"
	"github.com/clinicore/clinic-backend/internal/handlers"
	"github.com/clinicore/clinic-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	debugHandler *handlers.DebugHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth routes are public, with a stricter limit (10 req/min per IP)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login-password", authHandler.LoginPassword)
	auth.Post("/start", authHandler.Start)
	auth.Post("/verify-enroll", authHandler.VerifyEnroll)
	auth.Post("/login", authHandler.LoginTOTP)
	auth.Get("/me", authHandler.Me)
	auth.Post("/logout", authHandler.Logout)

	// Admin surface (session + admin role required)
	admin := api.Group("/admin", middleware.RequireAuth(), middleware.AdminRequired(cfg))
	admin.Post("/users/invite", adminHandler.CreateInvite)
	admin.Get("/invites", adminHandler.ListInvites)
	admin.Post("/invites/:id/revoke", adminHandler.RevokeInvite)
	admin.Get("/audit", adminHandler.ListAudit)

	if cfg.DebugEndpoints {
		api.Get("/debug/state", debugHandler.State)
		api.Get("/debug/sessions", debugHandler.Sessions)
	}
}
