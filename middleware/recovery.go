package middleware

import (
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
)

// Recover turns panics in handlers (a misbehaving filter or tag, usually)
// into 500 responses and logs them.
func Recover(logger Logger) fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error("panic recovered",
				"path", c.Path(),
				"method", c.Method(),
				"panic", e,
			)
		},
	})
}
