package models

import "context"

// Permission types.
const (
	PermRead        = "READ"
	PermWrite       = "WRITE"
	PermHardWrite   = "HARD WRITE"
	PermReadDeleted = "READ_DELETED"
	PermSuperAdmin  = "SUPER_ADMIN"

	// AllModels grants a permission across every entity kind.
	AllModels = "ALL"
)

const (
	RoleSuperAdmin  = "super-admin"
	RoleTenantAdmin = "tenant-admin"
	RoleUser        = "user"
	RoleGuest       = "guest"
)

type Role struct {
	Name        string       `gorm:"primaryKey;size:100" json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `gorm:"foreignKey:RoleName;references:Name" json:"permissions"`
}

type Permission struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Type     string `gorm:"size:50;not null;index:idx_role_type_model" json:"type"`
	Model    string `gorm:"size:100;not null;default:'ALL';index:idx_role_type_model" json:"model"`
	RoleName string `gorm:"size:100;not null;index:idx_role_type_model" json:"role_name"`
	Role     *Role  `gorm:"foreignKey:RoleName;references:Name" json:"role,omitempty"`
}

// Types lists every permission type a role may grant.
func Types() []string {
	return []string{PermRead, PermWrite, PermHardWrite, PermReadDeleted, PermSuperAdmin}
}

// Validate rejects unknown permission types.
func (p *Permission) Validate(context.Context) map[string]string {
	for _, t := range Types() {
		if p.Type == t {
			return nil
		}
	}
	return map[string]string{"type": "Unknown permission type"}
}

type PermissionKey struct {
	Type  string
	Model string
}

// Key identifies a permission by what it grants, ignoring the role it came from.
func (p Permission) Key() PermissionKey {
	model := p.Model
	if model == "" {
		model = AllModels
	}
	return PermissionKey{Type: p.Type, Model: model}
}

type PermissionSet map[PermissionKey]struct{}

func (s PermissionSet) Add(p Permission) {
	s[p.Key()] = struct{}{}
}

func (s PermissionSet) Has(action, model string) bool {
	_, ok := s[PermissionKey{Type: action, Model: model}]
	return ok
}

// Models groups granted types by model, the shape clients consume.
func (s PermissionSet) Models() map[string][]string {
	out := make(map[string][]string)
	for k := range s {
		out[k.Model] = append(out[k.Model], k.Type)
	}
	return out
}

func grants(types ...string) []Permission {
	perms := make([]Permission, 0, len(types))
	for _, t := range types {
		perms = append(perms, Permission{Type: t, Model: AllModels})
	}
	return perms
}

// DefaultRoles is the bootstrap role set.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        RoleSuperAdmin,
			Description: "Full access to every entity and tenant",
			Permissions: grants(PermRead, PermWrite, PermHardWrite, PermReadDeleted, PermSuperAdmin),
		},
		{
			Name:        RoleTenantAdmin,
			Description: "Manages every entity inside its tenant",
			Permissions: grants(PermRead, PermWrite, PermHardWrite),
		},
		{
			Name:        RoleUser,
			Description: "Reads and writes its own entities",
			Permissions: grants(PermRead, PermWrite),
		},
		{
			Name:        RoleGuest,
			Description: "Read only",
			Permissions: grants(PermRead),
		},
	}
}
