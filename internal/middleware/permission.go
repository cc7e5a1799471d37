package middleware

import (
	"context"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/audit"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/response"
	"github.com/gofiber/fiber/v2"
)

// RequestIDKey is the fiber local the requestid middleware writes to.
const RequestIDKey = "requestid"

// RequestContext copies the request id into the user context so that audit
// rows carry it.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(RequestIDKey).(string); ok && id != "" {
			c.SetUserContext(audit.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}

// RoleProtected allows actors holding any of allowedRoles.
func RoleProtected(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := access.ActorFrom(c.UserContext())
		if actor == nil {
			return response.Fail(c, apperr.ErrUnauthenticated)
		}

		for _, role := range allowedRoles {
			if actor.HasRole(role) {
				return c.Next()
			}
		}

		return response.Fail(c, apperr.ErrPermissionDenied)
	}
}

// PermissionProtected allows actors granted action on model or on ALL.
func PermissionProtected(action, model string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if access.ActorFrom(c.UserContext()) == nil {
			return response.Fail(c, apperr.ErrUnauthenticated)
		}
		if !HasPermission(c.UserContext(), action, model) {
			return response.Fail(c, apperr.ErrPermissionDenied)
		}
		return c.Next()
	}
}

func HasPermission(ctx context.Context, action, model string) bool {
	actor := access.ActorFrom(ctx)
	if actor == nil {
		return false
	}
	return actor.HasPermission(action, models.AllModels) || actor.HasPermission(action, model)
}
