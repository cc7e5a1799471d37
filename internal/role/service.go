package role

import (
	"context"
	"fmt"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/audit"
	"github.com/Kyz7/vanilla/internal/models"
	"gorm.io/gorm"
)

func CreateRole(db *gorm.DB, name string, description string, perms []models.Permission) (*models.Role, error) {
	role := models.Role{Name: name, Description: description}
	for _, p := range perms {
		role.Permissions = append(role.Permissions, models.Permission{Type: p.Type, Model: p.Model})
	}
	if err := db.Create(&role).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	return &role, nil
}

// Service grants and revokes roles on users. Super-admins manage everyone;
// tenant-admins manage users of their own tenant and cannot hand out
// super-admin.
type Service struct {
	db      *gorm.DB
	tracker *audit.Tracker
}

func NewService(db *gorm.DB, tracker *audit.Tracker) *Service {
	return &Service{db: db, tracker: tracker}
}

func (s *Service) AddRole(ctx context.Context, userID uint, roleName string) (*models.User, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, user, roleName); err != nil {
		return nil, err
	}

	var role models.Role
	if err := s.db.WithContext(ctx).Where("name = ?", roleName).First(&role).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	if user.HasRole(roleName) {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Association("Roles").Append(&role); err != nil {
		return nil, apperr.FromDB(err)
	}
	s.tracker.Record(ctx, "users", user.ID, user, audit.Updated, fmt.Sprintf("role added: %s", roleName))
	return s.user(ctx, userID)
}

// RemoveRole revokes roleName. Revoking a role the user does not hold is a
// no-op.
func (s *Service) RemoveRole(ctx context.Context, userID uint, roleName string) (*models.User, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, user, roleName); err != nil {
		return nil, err
	}

	var held *models.Role
	for i := range user.Roles {
		if user.Roles[i].Name == roleName {
			held = &user.Roles[i]
		}
	}
	if held == nil {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Association("Roles").Delete(held); err != nil {
		return nil, apperr.FromDB(err)
	}
	s.tracker.Record(ctx, "users", user.ID, user, audit.Updated, fmt.Sprintf("role removed: %s", roleName))
	return s.user(ctx, userID)
}

func (s *Service) user(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles.Permissions").
		Where("deleted = ?", false).
		First(&user, id).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return &user, nil
}

func authorize(ctx context.Context, user *models.User, roleName string) error {
	actor := access.ActorFrom(ctx)
	switch {
	case actor == nil:
		return apperr.ErrUnauthenticated
	case actor.HasRole(models.RoleSuperAdmin):
		return nil
	case !actor.HasRole(models.RoleTenantAdmin):
		return apperr.ErrPermissionDenied
	case actor.GetTenantID() == 0 || actor.GetTenantID() != user.GetTenantID():
		// users of other tenants are invisible to a tenant-admin
		return apperr.ErrNotFound
	case roleName == models.RoleSuperAdmin:
		return fmt.Errorf("%w: only a super-admin may grant %s", apperr.ErrPermissionDenied, roleName)
	}
	return nil
}
