package models

import (
	"time"
)

// Access levels govern what non-owners may do with an owned entity.
const (
	AccessPrivate      = "private"
	AccessProtected    = "protected"
	AccessTenantPublic = "tenant_public"
	AccessPublic       = "public"
)

func ValidAccess(level string) bool {
	switch level {
	case AccessPrivate, AccessProtected, AccessTenantPublic, AccessPublic:
		return true
	}
	return false
}

// Base carries the system columns present on every entity table.
type Base struct {
	ID        uint       `gorm:"primaryKey" json:"id" vanilla:"protected"`
	CreatedAt time.Time  `json:"created_at" vanilla:"protected"`
	UpdatedAt time.Time  `json:"updated_at" vanilla:"protected"`
	DeletedAt *time.Time `json:"deleted_at" vanilla:"protected"`
	Deleted   bool       `gorm:"not null;default:false;index" json:"deleted" vanilla:"protected"`
}

func (b *Base) IsDeleted() bool {
	return b.Deleted
}

func (b *Base) MarkDeleted(at time.Time) {
	b.Deleted = true
	b.DeletedAt = &at
}

func (b *Base) ClearDeleted() {
	b.Deleted = false
	b.DeletedAt = nil
}

// Owned marks an entity as belonging to a single user.
type Owned struct {
	UserID uint   `gorm:"index" json:"user_id" vanilla:"protected"`
	Access string `gorm:"size:20;not null;default:'tenant_public'" json:"access"`
}

func (o *Owned) OwnerID() uint {
	return o.UserID
}

func (o *Owned) AccessLevel() string {
	return o.Access
}

func (o *Owned) SetOwner(userID uint) {
	o.UserID = userID
	if o.Access == "" {
		o.Access = AccessTenantPublic
	}
}

// TenantOwned is Owned scoped to a tenant.
type TenantOwned struct {
	Owned
	TenantID uint `gorm:"index" json:"tenant_id" vanilla:"protected"`
}

func (t *TenantOwned) OwnerTenantID() uint {
	return t.TenantID
}

func (t *TenantOwned) SetTenant(tenantID uint) {
	t.TenantID = tenantID
}

type SoftDeletable interface {
	IsDeleted() bool
	MarkDeleted(at time.Time)
	ClearDeleted()
}

type Ownable interface {
	OwnerID() uint
	AccessLevel() string
	SetOwner(userID uint)
}

type TenantBound interface {
	Ownable
	OwnerTenantID() uint
	SetTenant(tenantID uint)
}
