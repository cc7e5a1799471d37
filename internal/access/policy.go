package access

import (
	"context"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Guard decides whether the request actor may perform action on obj.
type Guard interface {
	Check(ctx context.Context, d *schema.Descriptor, obj any, action string) bool
}

// Enforce turns a denied check into an error: ErrUnauthenticated without an
// actor, ErrPermissionDenied otherwise.
func Enforce(ctx context.Context, g Guard, d *schema.Descriptor, obj any, action string) error {
	if g.Check(ctx, d, obj, action) {
		return nil
	}
	if ActorFrom(ctx) == nil {
		return apperr.ErrUnauthenticated
	}
	return apperr.ErrPermissionDenied
}

// Policy implements row-level rules for owned and multi-tenant entities.
type Policy struct{}

func NewPolicy() *Policy {
	return &Policy{}
}

var _ Guard = (*Policy)(nil)

func (p *Policy) Check(ctx context.Context, d *schema.Descriptor, obj any, action string) bool {
	switch d.Tenancy {
	case schema.Owned:
		return p.checkOwned(ctx, obj, action)
	case schema.MultiTenant:
		return p.checkTenant(ctx, d, obj, action)
	}
	return true
}

func (p *Policy) Enforce(ctx context.Context, d *schema.Descriptor, obj any, action string) error {
	return Enforce(ctx, p, d, obj, action)
}

func (p *Policy) checkOwned(ctx context.Context, obj any, action string) bool {
	actor := ActorFrom(ctx)
	if actor == nil {
		return false
	}
	if actor.HasRole(models.RoleSuperAdmin) {
		return true
	}
	owned, ok := obj.(models.Ownable)
	if !ok {
		return false
	}
	if owned.OwnerID() == actor.GetID() {
		return true
	}
	return owned.AccessLevel() == models.AccessPublic && action == models.PermRead
}

func (p *Policy) checkTenant(ctx context.Context, d *schema.Descriptor, obj any, action string) bool {
	actor := ActorFrom(ctx)
	if actor == nil {
		return false
	}
	if actor.HasRole(models.RoleSuperAdmin) || actor.HasRole(models.RoleTenantAdmin) {
		return true
	}
	if !Permitted(actor, action, d.Kind) {
		return false
	}
	owned, ok := obj.(models.TenantBound)
	if !ok {
		return false
	}
	if owned.OwnerID() == actor.GetID() {
		return true
	}
	switch owned.AccessLevel() {
	case models.AccessPrivate:
		return false
	case models.AccessProtected:
		return action == models.PermRead
	}
	return true
}

// Permitted reports whether the actor holds action on every model or on kind.
func Permitted(actor Actor, action, kind string) bool {
	return actor.HasPermission(action, models.AllModels) || actor.HasPermission(action, kind)
}

// CanReadDeleted reports whether list queries may include soft-deleted rows.
func (p *Policy) CanReadDeleted(ctx context.Context, d *schema.Descriptor) bool {
	actor := ActorFrom(ctx)
	return actor != nil && Permitted(actor, models.PermReadDeleted, d.Kind)
}

func column(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

// Scope returns the row predicate for list queries. Without an actor no owned
// or multi-tenant row matches; super-admins match everything. Otherwise a row
// matches when it is not private or the actor owns it, and multi-tenant kinds
// are further limited to the actor's tenant, where tenant-admins see every
// row. Non-private rows of other owners therefore list even though a single
// read of them may be refused.
func (p *Policy) Scope(ctx context.Context, d *schema.Descriptor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if d.Tenancy == schema.Unowned {
			return tx
		}
		actor := ActorFrom(ctx)
		if actor == nil {
			return tx.Where("1 = 0")
		}
		if actor.HasRole(models.RoleSuperAdmin) {
			return tx
		}

		visible := clause.Or(
			clause.Neq{Column: column("access"), Value: models.AccessPrivate},
			clause.Eq{Column: column("user_id"), Value: actor.GetID()},
		)
		if d.Tenancy == schema.Owned {
			return tx.Where(visible)
		}

		tx = tx.Where(clause.Eq{Column: column("tenant_id"), Value: actor.GetTenantID()})
		if actor.HasRole(models.RoleTenantAdmin) {
			return tx
		}
		return tx.Where(visible)
	}
}

// UniqueScope returns the column constraints that bound a uniqueness check:
// the owner for owned kinds, the tenant for multi-tenant kinds.
func (p *Policy) UniqueScope(ctx context.Context, d *schema.Descriptor) map[string]any {
	actor := ActorFrom(ctx)
	var id, tenant uint
	if actor != nil {
		id, tenant = actor.GetID(), actor.GetTenantID()
	}
	switch d.Tenancy {
	case schema.Owned:
		return map[string]any{"user_id": id}
	case schema.MultiTenant:
		return map[string]any{"tenant_id": tenant}
	}
	return nil
}
