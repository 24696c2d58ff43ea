package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/SentimentalK/Avalon-Tunnel/internal/handlers/api"
	"github.com/gofiber/fiber/v2"
)

// BearerAuth guards the admin surface with a single static bearer secret.
// The comparison is constant time so the secret cannot be probed byte by
// byte through response timing.
func BearerAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return c.Status(fiber.StatusUnauthorized).JSON(api.NewErrorResponse("invalid authentication credentials", ""))
		}
		return c.Next()
	}
}
