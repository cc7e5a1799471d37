package access

import (
	"context"

	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleGuard allows actors holding any of the listed roles, regardless of action.
type RoleGuard struct {
	Roles []string
}

func SuperAdminOnly() RoleGuard {
	return RoleGuard{Roles: []string{models.RoleSuperAdmin}}
}

func (g RoleGuard) Check(ctx context.Context, _ *schema.Descriptor, _ any, _ string) bool {
	actor := ActorFrom(ctx)
	if actor == nil {
		return false
	}
	for _, r := range g.Roles {
		if actor.HasRole(r) {
			return true
		}
	}
	return false
}

type tenantMember interface {
	GetTenantID() uint
}

// TenantAdminGuard admits super-admins everywhere and tenant-admins for
// objects inside their own tenant.
type TenantAdminGuard struct{}

func (TenantAdminGuard) Check(ctx context.Context, _ *schema.Descriptor, obj any, _ string) bool {
	actor := ActorFrom(ctx)
	if actor == nil {
		return false
	}
	if actor.HasRole(models.RoleSuperAdmin) {
		return true
	}
	if !actor.HasRole(models.RoleTenantAdmin) {
		return false
	}
	if m, ok := obj.(tenantMember); ok {
		return m.GetTenantID() == actor.GetTenantID()
	}
	return true
}

// RoleScope hides every row from actors holding none of roles. It pairs
// with RoleGuard on list queries, which never consult the guard.
func RoleScope(roles ...string) func(ctx context.Context) func(*gorm.DB) *gorm.DB {
	guard := RoleGuard{Roles: roles}
	return func(ctx context.Context) func(*gorm.DB) *gorm.DB {
		return func(tx *gorm.DB) *gorm.DB {
			if guard.Check(ctx, nil, nil, "") {
				return tx
			}
			return tx.Where("1 = 0")
		}
	}
}

// TenantAdminScope is the list counterpart of TenantAdminGuard.
func TenantAdminScope(ctx context.Context) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		actor := ActorFrom(ctx)
		switch {
		case actor == nil:
			return tx.Where("1 = 0")
		case actor.HasRole(models.RoleSuperAdmin):
			return tx
		case actor.HasRole(models.RoleTenantAdmin) && actor.GetTenantID() != 0:
			return tx.Where(clause.Eq{Column: column("tenant_id"), Value: actor.GetTenantID()})
		}
		return tx.Where("1 = 0")
	}
}
