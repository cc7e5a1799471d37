package user

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/resource"
	"github.com/Kyz7/vanilla/internal/utils"
	"gorm.io/gorm"
)

// Hooks add what the generic lifecycle does not know about users: password
// hashing, tenant placement and the default role.
type Hooks struct {
	db          *gorm.DB
	multiTenant bool
	defaultRole string
}

func NewHooks(db *gorm.DB, multiTenant bool) *Hooks {
	return &Hooks{db: db, multiTenant: multiTenant, defaultRole: models.RoleUser}
}

// Config returns the users resource configuration. In simple mode only
// super-admins manage users; in multi-tenant mode tenant-admins manage the
// users of their own tenant.
func (h *Hooks) Config(maxResults int) resource.Config[models.User] {
	cfg := resource.Config[models.User]{
		Name:       "users",
		MaxResults: maxResults,
		Hooks: resource.Hooks[models.User]{
			Stamp:      h.Stamp,
			PreCreate:  h.PreCreate,
			PostCreate: h.PostCreate,
			PreUpdate:  h.PreUpdate,
		},
	}
	if h.multiTenant {
		cfg.Guard = access.TenantAdminGuard{}
		cfg.Scope = access.TenantAdminScope
	} else {
		cfg.Guard = access.SuperAdminOnly()
		cfg.Scope = access.RoleScope(models.RoleSuperAdmin)
	}
	return cfg
}

// Stamp places users created by a tenant-admin in the admin's tenant.
func (h *Hooks) Stamp(ctx context.Context, u *models.User) error {
	actor := access.ActorFrom(ctx)
	if actor == nil || actor.HasRole(models.RoleSuperAdmin) {
		return nil
	}
	u.SetTenant(actor.GetTenantID())
	return nil
}

func (h *Hooks) PreCreate(ctx context.Context, u *models.User, data map[string]any) error {
	errs := apperr.FieldErrors{}

	if msg := setPassword(u, data, true); msg != "" {
		errs.Add("password", msg)
	}

	actor := access.ActorFrom(ctx)
	if raw, ok := data["tenant_id"]; ok && h.multiTenant && actor != nil && actor.HasRole(models.RoleSuperAdmin) {
		msg, err := h.setTenant(ctx, u, raw)
		if err != nil {
			return err
		}
		if msg != "" {
			errs.Add("tenant_id", msg)
		}
	}

	return errs.Err()
}

func (h *Hooks) PreUpdate(_ context.Context, u *models.User, data map[string]any) error {
	if msg := setPassword(u, data, false); msg != "" {
		return apperr.Validation("password", msg)
	}
	return nil
}

// PostCreate grants the default role when it exists.
func (h *Hooks) PostCreate(ctx context.Context, u *models.User) error {
	var role models.Role
	err := h.db.WithContext(ctx).Where("name = ?", h.defaultRole).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return apperr.FromDB(h.db.WithContext(ctx).Model(u).Association("Roles").Append(&role))
}

func setPassword(u *models.User, data map[string]any, required bool) string {
	raw, ok := data["password"]
	if !ok {
		if required {
			return "Should be specified"
		}
		return ""
	}
	password, ok := raw.(string)
	if !ok {
		return "Should be a valid string"
	}
	if password == "" {
		return "Should be specified"
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return "Invalid password"
	}
	u.Password = hash
	return ""
}

func (h *Hooks) setTenant(ctx context.Context, u *models.User, raw any) (string, error) {
	if raw == nil {
		u.SetTenant(0)
		return "", nil
	}
	n, ok := raw.(float64)
	if !ok || n < 0 || n != math.Trunc(n) {
		return "Should be a valid positive integer", nil
	}

	id := uint(n)
	var count int64
	err := h.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND deleted = ?", id, false).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	if count == 0 {
		return fmt.Sprintf("%d : object with such id not found", id), nil
	}
	u.SetTenant(id)
	return "", nil
}
