package auth

import (
	"errors"

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

// Register mounts /login and /me on r. mw runs before both.
func (h *Handler) Register(r fiber.Router, mw ...fiber.Handler) {
	g := r.Group("/auth", mw...)
	g.Post("/login", h.Login)
	g.Get("/me", JWTProtected(), h.Me)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&body); err != nil {
		return response.FromError(c, h.log, apperr.BadRequest("Invalid request body: %v", err), "User")
	}

	missing := apperr.FieldErrors{}
	if body.Email == "" {
		missing.Add("email", "Should be specified")
	}
	if body.Password == "" {
		missing.Add("password", "Should be specified")
	}
	if err := missing.Err(); err != nil {
		return response.FromError(c, h.log, err, "User")
	}

	token, user, err := h.svc.Login(c.UserContext(), body.Email, body.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return response.Error(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	if err != nil {
		return response.FromError(c, h.log, err, "User")
	}

	return response.Success(c, fiber.Map{
		"access_token": token,
		"expires_in":   int(h.svc.Signer().TTL().Seconds()),
		"user":         profile(user),
	}, "Login successful")
}

func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(uint)
	user, err := h.svc.Actor(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, h.log, err, "User")
	}
	return response.Success(c, profile(user), "")
}

func profile(u *models.User) fiber.Map {
	return fiber.Map{
		"id":          u.ID,
		"name":        u.Name,
		"email":       u.Email,
		"tenant_id":   u.TenantID,
		"roles":       u.RoleNames(),
		"permissions": u.Permissions().Models(),
	}
}
