package middleware

import (
	"errors"
	"strings"

	"bookstore/internal/models"

	"bookstore/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		user, err := authService.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			if !errors.Is(err, services.ErrInvalidToken) {
				log.Error().Err(err).Str("path", c.Path()).Msg("error loading token user")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Could not verify token",
				})
			}
			log.Debug().Err(err).Str("path", c.Path()).Msg("rejected token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

const userLocalsKey = "user"

// CurrentUser returns the user stored by AuthRequired, or nil on an
// unguarded route.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}
