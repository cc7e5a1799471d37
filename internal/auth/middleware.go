package auth

import (
	"strings"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/response"
	"github.com/gofiber/fiber/v2"
)

// Identify binds the bearer token's user to the request context. Requests
// without an Authorization header continue anonymously; a malformed or
// invalid token is rejected.
func (s *Service) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return response.Error(c, fiber.StatusUnauthorized, "INVALID_TOKEN_FORMAT", "Invalid token format", nil)
		}

		user, err := s.Authenticate(c.UserContext(), tokenParts[1])
		if err != nil {
			return response.Error(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
		}

		c.Locals("user_id", user.ID)
		c.SetUserContext(access.WithActor(c.UserContext(), user))
		return c.Next()
	}
}

// JWTProtected rejects anonymous requests. It runs after Identify.
func JWTProtected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if access.ActorFrom(c.UserContext()) == nil {
			return response.Fail(c, apperr.ErrUnauthenticated)
		}
		return c.Next()
	}
}
