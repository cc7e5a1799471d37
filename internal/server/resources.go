package server

import (
	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/resource"
	"github.com/Kyz7/vanilla/internal/user"
)

// resources registers the admin resources and the application kinds.
// Tenant-scoped kinds exist only in multi-tenant mode.
func (s *Server) resources() error {
	superAdmin := access.SuperAdminOnly()
	superAdminScope := access.RoleScope(models.RoleSuperAdmin)
	multiTenant := s.Config.MultiTenant()

	steps := []func() error{
		func() error { return bind(s, resource.Config[models.Post]{}) },
		func() error { return bind(s, resource.Config[models.Comment]{}) },
		func() error { return bind(s, resource.Config[models.Note]{}) },
		func() error { return bind(s, user.NewHooks(s.DB, multiTenant).Config(s.Config.MaxResults)) },
		func() error {
			return bind(s, resource.Config[models.Role]{Guard: superAdmin, Scope: superAdminScope})
		},
		func() error {
			return bind(s, resource.Config[models.Permission]{Guard: superAdmin, Scope: superAdminScope})
		},
	}
	if multiTenant {
		steps = append(steps,
			func() error { return bind(s, resource.Config[models.Project]{}) },
			func() error { return bind(s, resource.Config[models.Task]{}) },
			func() error {
				return bind(s, resource.Config[models.Tenant]{Guard: superAdmin, Scope: superAdminScope})
			},
		)
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
