package role

import (
	"context"

	"github.com/Kyz7/vanilla/internal/models"
	"gorm.io/gorm"
)

// SeedDefaultRoles inserts every default role that does not exist yet, with
// its grants, and returns how many were inserted. Existing roles are left
// untouched.
func SeedDefaultRoles(ctx context.Context, db *gorm.DB) (int, error) {
	inserted := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, role := range models.DefaultRoles() {
			var count int64
			if err := tx.Model(&models.Role{}).Where("name = ?", role.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if _, err := CreateRole(tx, role.Name, role.Description, role.Permissions); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}
