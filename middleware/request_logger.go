package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/liquidview"
)

// RequestLogger emits one structured log line per request, including the
// template the handler rendered, if any. Errors returned by the chain are
// passed to the app's error handler first so the logged status is the one
// sent. Health check endpoints (/_health) are not logged.
func RequestLogger(logger Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		stop := time.Since(start)

		path := c.Path()
		if strings.HasPrefix(path, "/_health") {
			return nil
		}

		status := c.Response().StatusCode()
		fields := []any{
			"method", c.Method(),
			"path", path,
			"status", status,
			"duration", stop,
			"ip", c.IP(),
		}
		if tpl, ok := c.Locals(liquidview.TemplateLocal).(string); ok {
			fields = append(fields, "template", tpl)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("http request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
		return nil
	}
}
