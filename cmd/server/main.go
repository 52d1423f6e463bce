package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/clinicore/clinic-backend/internal/audit"
	"github.com/clinicore/clinic-backend/internal/clinic"
	"github.com/clinicore/clinic-backend/internal/config"
	"github.com/clinicore/clinic-backend/internal/database"
	"github.com/clinicore/clinic-backend/internal/dto"
	"github.com/clinicore/clinic-backend/internal/handlers"
	"github.com/clinicore/clinic-backend/internal/logging"
	"github.com/clinicore/clinic-backend/internal/middleware"
	"github.com/clinicore/clinic-backend/internal/routes"
	"github.com/clinicore/clinic-backend/internal/secrets"
	"github.com/clinicore/clinic-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.MasterSecret == "" {
		slog.Error("MASTER_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.DebugEndpoints {
		slog.Warn("debug endpoints are enabled; do not run this in production")
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// System-log cleanup (30-day retention; audit logs are never touched)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Cipher key: derived once, immutable, injected below.
	cipher, err := secrets.NewCipher(secrets.DeriveKey(cfg.MasterSecret, cfg.KDFSalt))
	if err != nil {
		slog.Error("cipher init failed", "error", err)
		os.Exit(1)
	}

	// Services
	sessionService := services.NewSessionService(database.DB, cfg.SessionTTL)
	inviteService := services.NewInviteService(database.DB)
	clinicService := clinic.NewService(database.DB)
	authService := services.NewAuthService(database.DB, sessionService, inviteService, clinicService)
	totpService := services.NewTOTPService(database.DB, cipher, sessionService, inviteService, clinicService)

	// Expired-session reaper (storage hygiene only)
	reaperDone := make(chan struct{})
	sessionService.StartReaper(reaperDone)

	// Audit trail consumer
	recorder := audit.NewRecorder(database.DB)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, totpService, sessionService, cfg)
	adminHandler := handlers.NewAdminHandler(database.DB, inviteService, clinicService)
	healthHandler := handlers.NewHealthHandler()
	debugHandler := handlers.NewDebugHandler(database.DB)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		return c.Next()
	})
	app.Use(middleware.SessionAuth(sessionService, cfg.CookieName))
	app.Use(middleware.Audit(recorder))

	// Routes
	routes.Setup(app, cfg, authHandler, adminHandler, healthHandler, debugHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	close(reaperDone)
	recorder.Stop()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	wireCode := dto.CodeInvalidInput
	if code == fiber.StatusNotFound {
		wireCode = dto.CodeNotFound
	}
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
		wireCode = dto.CodeInternal
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Code:    wireCode,
		Message: message,
	})
}
