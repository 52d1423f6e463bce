package middleware

import (
	"strings"

	"github.com/clinicore/clinic-backend/internal/audit"
	"github.com/gofiber/fiber/v2"
)

// Audit observes every request/response pair and enqueues one audit entry
// after the handler chain returns. The enqueue is non-blocking and failures
// never reach the caller.
func Audit(recorder *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		entry := audit.Entry{
			Method:    c.Method(),
			Path:      c.Path(),
			Status:    c.Response().StatusCode(),
			ClientIP:  clientIP(c),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}
		if user := CurrentUser(c); user != nil {
			id := user.ID
			entry.UserID = &id
		}
		recorder.Record(entry)

		return err
	}
}

// clientIP prefers the first hop of X-Forwarded-For, falling back to the
// socket address.
func clientIP(c *fiber.Ctx) string {
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.IP()
}
