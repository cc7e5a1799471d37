package models

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	Base
	Name     string            `gorm:"size:100;not null" json:"name"`
	Email    string            `gorm:"uniqueIndex;size:100;not null" json:"email" vanilla:"immutable;unique"`
	Password string            `gorm:"size:255" json:"-" vanilla:"private"`
	TenantID *uint             `gorm:"index" json:"tenant_id" vanilla:"protected"`
	Tenant   *Tenant           `json:"tenant,omitempty" vanilla:"unprotected"`
	Roles    []Role            `gorm:"many2many:user_to_role;joinForeignKey:UserID;joinReferences:RoleName" json:"roles,omitempty"`
	Extra    datatypes.JSONMap `json:"-" vanilla:"extension"`
}

type Tenant struct {
	Base
	Name  string            `gorm:"uniqueIndex;size:100;not null" json:"name" vanilla:"unique"`
	Users []User            `json:"users,omitempty"`
	Extra datatypes.JSONMap `json:"-" vanilla:"extension"`
}

func (u *User) GetID() uint {
	return u.ID
}

func (u *User) GetTenantID() uint {
	if u.TenantID == nil {
		return 0
	}
	return *u.TenantID
}

// SetTenant places the user in a tenant; zero clears it.
func (u *User) SetTenant(id uint) {
	if id == 0 {
		u.TenantID = nil
		return
	}
	u.TenantID = &id
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Permissions merges the grants of every role; overlapping grants collapse.
func (u *User) Permissions() PermissionSet {
	set := make(PermissionSet)
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			set.Add(p)
		}
	}
	return set
}

func (u *User) HasPermission(action, model string) bool {
	return u.Permissions().Has(action, model)
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// ExtendAPI adds role names to the public projection.
func (u *User) ExtendAPI(data map[string]any) {
	data["roles"] = u.RoleNames()
}

// UserAction is one audit row per mutating action.
type UserAction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;index" json:"name"`
	Datetime  time.Time `gorm:"index" json:"datetime"`
	Message   string    `gorm:"type:text" json:"message"`
	Entity    string    `gorm:"size:100;index" json:"entity"`
	EntityID  string    `gorm:"size:100" json:"entity_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	RequestID string    `gorm:"size:64" json:"request_id"`
}
