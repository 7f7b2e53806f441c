// Package middleware holds the Fiber middleware used around Liquid renders.
package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/liquidview"
)

// Logger is the logging surface the middleware needs. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// AsyncRender installs s into each request's user context so the async
// render helpers can run there.
func AsyncRender(s *liquidview.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(liquidview.WithScheduler(c.UserContext(), s))
		return c.Next()
	}
}
