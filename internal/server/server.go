package server

import (
	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/audit"
	"github.com/Kyz7/vanilla/internal/auth"
	"github.com/Kyz7/vanilla/internal/config"
	"github.com/Kyz7/vanilla/internal/entity"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/resource"
	"github.com/Kyz7/vanilla/internal/response"
	"github.com/Kyz7/vanilla/internal/schema"
	"github.com/Kyz7/vanilla/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Server wires the entity layer, the resources and the HTTP app together.
type Server struct {
	App      *fiber.App
	DB       *gorm.DB
	Config   *config.Config
	Log      zerolog.Logger
	Registry *schema.Registry
	Manager  *entity.Manager
	Tracker  *audit.Tracker
	Auth     *auth.Service

	binders []resource.Binder
}

func New(cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*Server, error) {
	registry := schema.NewRegistry(db.NamingStrategy)
	if err := registry.Register(models.All()...); err != nil {
		return nil, err
	}
	if err := extend(registry, cfg); err != nil {
		return nil, err
	}

	s := &Server{
		DB:       db,
		Config:   cfg,
		Log:      log,
		Registry: registry,
		Manager:  entity.NewManager(db, registry, access.NewPolicy()),
		Tracker:  audit.NewTracker(db, log, cfg.TrackActions),
		Auth:     auth.NewService(db, utils.SignerFromConfig(cfg)),
	}

	s.App = fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: response.ErrorHandler(log),
	})

	if err := s.resources(); err != nil {
		return nil, err
	}
	s.SetupRoutes()
	return s, nil
}

func (s *Server) Listen() error {
	return s.App.Listen(s.Config.ServerAddr)
}

func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}

// Binders lists the mounted resources in registration order.
func (s *Server) Binders() []resource.Binder {
	return s.binders
}

func bind[T any](s *Server, cfg resource.Config[T]) error {
	if cfg.MaxResults == 0 {
		cfg.MaxResults = s.Config.MaxResults
	}
	svc, err := resource.NewService[T](s.Manager, s.Tracker, s.Log, cfg)
	if err != nil {
		return err
	}
	s.binders = append(s.binders, resource.NewHandler(svc, s.Log))
	return nil
}

// extend merges the configured extra fields into users and tenants.
func extend(registry *schema.Registry, cfg *config.Config) error {
	for _, x := range []struct {
		model any
		list  string
	}{
		{&models.User{}, cfg.UserExtraFields},
		{&models.Tenant{}, cfg.TenantExtraFields},
	} {
		if x.list == "" {
			continue
		}
		ext, err := schema.ParseExtension(x.list)
		if err != nil {
			return err
		}
		if err := registry.Extend(x.model, ext); err != nil {
			return err
		}
	}
	return nil
}
