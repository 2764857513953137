package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/croquete1/Fitness-Pro-sub002/pkg/utils"
)

// AuthRequired validates the bearer token and stores the viewer id and raw
// role claim in the request locals. Role normalization happens in the
// handlers, where an unknown claim is rejected per operation.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get("Authorization"))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or malformed authorization header",
			})
		}

		claims, err := utils.ValidateToken(token, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return "", false
	}
	return token, true
}
