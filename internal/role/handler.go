package role

import (
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/response"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts role assignment under /users/:id/roles/:role.
func (h *Handler) Register(r fiber.Router, mw ...fiber.Handler) {
	chain := func(last fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, mw...), last)
	}
	r.Post("/users/:id/roles/:role", chain(h.AddRole)...)
	r.Delete("/users/:id/roles/:role", chain(h.RemoveRole)...)
}

func (h *Handler) AddRole(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.FromError(c, h.log, apperr.BadRequest("Invalid user ID"), "User")
	}

	user, err := h.svc.AddRole(c.UserContext(), uint(id), c.Params("role"))
	if err != nil {
		return response.FromError(c, h.log, err, "User")
	}
	return response.Success(c, assignment(user), "Role added successfully")
}

func (h *Handler) RemoveRole(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.FromError(c, h.log, apperr.BadRequest("Invalid user ID"), "User")
	}

	user, err := h.svc.RemoveRole(c.UserContext(), uint(id), c.Params("role"))
	if err != nil {
		return response.FromError(c, h.log, err, "User")
	}
	return response.Success(c, assignment(user), "Role removed successfully")
}

func assignment(u *models.User) fiber.Map {
	return fiber.Map{"id": u.ID, "roles": u.RoleNames()}
}
