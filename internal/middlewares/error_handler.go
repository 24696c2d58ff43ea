package middlewares

import (
	"log/slog"

	"github.com/SentimentalK/Avalon-Tunnel/internal/handlers/api"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler converts unhandled errors on the admin surface into the
// structured JSON envelope. Nothing escapes as a bare crash or an HTML page.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("Unhandled error", "path", ctx.Path(), "code", code, "error", err)
		return ctx.Status(code).JSON(api.NewErrorResponse("internal server error", ""))
	}
	return ctx.Status(code).JSON(api.NewErrorResponse(message, ""))
}
