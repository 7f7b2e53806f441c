package liquidview

import (
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/karloscodes/liquidview/config"
	"github.com/karloscodes/liquidview/loader"
)

var (
	// ErrNotAttached is returned by render operations on an application that
	// was never attached.
	ErrNotAttached = errors.New("liquidview: extension not attached to application")

	// ErrUnsupportedMode is returned by the async render operations when the
	// context carries no Scheduler.
	ErrUnsupportedMode = errors.New("liquidview: async render requires a scheduler in the context")

	ErrTemplateNotFound = loader.ErrTemplateNotFound
	ErrConfiguration    = config.ErrConfiguration
)

type (
	TemplateNotFoundError = loader.TemplateNotFoundError
	ConfigurationError    = config.ConfigurationError
)

// ErrorHandler returns a Fiber error handler that maps missing templates to
// 404 and everything else to the fiber.Error code or 500.
// JSON clients get a JSON body, browsers a small HTML page. Error details are
// only shown when isDev is true; messages of *fiber.Error values are meant
// for clients and always shown in JSON.
func ErrorHandler(logger *slog.Logger, isDev bool) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code := StatusCode(err)

		level := slog.LevelError
		if code < fiber.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.UserContext(), level, "request failed",
			slog.Any("error", err),
			slog.String("path", c.Path()),
			slog.String("method", c.Method()),
			slog.Int("status", code),
		)

		if c.Accepts(fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
			msg := utils.StatusMessage(code)
			var fe *fiber.Error
			if isDev || errors.As(err, &fe) {
				msg = err.Error()
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   ErrorCodeName(code),
				"message": msg,
			})
		}

		msg := ""
		if isDev {
			msg = err.Error()
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Status(code).SendString(errorHTML(code, ErrorCodeName(code), msg))
	}
}

// StatusCode returns the HTTP status for a render error.
func StatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrTemplateNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorCodeName returns a human-readable name for common HTTP status codes.
func ErrorCodeName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Error"
	}
}

func errorHTML(code int, title, message string) string {
	details := ""
	if message != "" {
		details = fmt.Sprintf("\n<pre>%s</pre>", html.EscapeString(message))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>%d - %s</title></head>
<body>
<h1>%d</h1>
<h2>%s</h2>%s
</body>
</html>`, code, title, code, title, details)
}
