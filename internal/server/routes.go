package server

import (
	"time"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/auth"
	"github.com/Kyz7/vanilla/internal/middleware"
	"github.com/Kyz7/vanilla/internal/resource"
	"github.com/Kyz7/vanilla/internal/response"
	"github.com/Kyz7/vanilla/internal/role"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func (s *Server) SetupRoutes() {
	app := s.App

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: middleware.RequestIDKey,
	}))
	app.Use(logger.New(logger.Config{
		Output: s.Log,
		Format: "${status} ${method} ${path} ${latency} ${locals:requestid}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS, PATCH",
	}))
	app.Use(middleware.RequestContext())
	app.Use(s.Auth.Identify())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "vanilla API is running",
		})
	})

	// ==========================================
	// AUTH ROUTES
	// ==========================================
	auth.NewHandler(s.Auth, s.Log).Register(app, limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	// ==========================================
	// API REFERENCE
	// ==========================================
	app.Get("/api-reference", s.listReferences)
	app.Get("/api-reference/:name", s.getReference)

	// ==========================================
	// ROLE ASSIGNMENT (super-admin, tenant-admin)
	// ==========================================
	role.NewHandler(role.NewService(s.DB, s.Tracker), s.Log).Register(app, auth.JWTProtected())

	// ==========================================
	// RESOURCES
	// ==========================================
	for _, b := range s.binders {
		b.Register(app)
	}
}

func (s *Server) listReferences(c *fiber.Ctx) error {
	refs := make([]resource.Reference, 0, len(s.binders))
	for _, b := range s.binders {
		refs = append(refs, b.Reference(c.BaseURL()))
	}
	return response.Success(c, refs, "")
}

func (s *Server) getReference(c *fiber.Ctx) error {
	for _, b := range s.binders {
		if b.Name() == c.Params("name") {
			return response.Success(c, b.Reference(c.BaseURL()), "")
		}
	}
	return response.FromError(c, s.Log, apperr.ErrNotFound, "Resource")
}
