package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/query"
	"github.com/Kyz7/vanilla/internal/schema"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Validator is implemented by models with their own validation rules. It
// returns field errors, or nil when the entity is valid.
type Validator interface {
	Validate(ctx context.Context) map[string]string
}

// APIExtender lets a model add computed keys to its public projection.
type APIExtender interface {
	ExtendAPI(data map[string]any)
}

// Manager runs the entity lifecycle: population, validation, projection,
// soft delete, restore and hard delete.
type Manager struct {
	db       *gorm.DB
	registry *schema.Registry
	policy   *access.Policy
	guard    access.Guard
	html     *bluemonday.Policy
	now      func() time.Time
}

func NewManager(db *gorm.DB, reg *schema.Registry, p *access.Policy) *Manager {
	return &Manager{
		db:       db,
		registry: reg,
		policy:   p,
		guard:    p,
		html:     bluemonday.UGCPolicy(),
		now:      time.Now,
	}
}

// WithGuard returns a copy of m that checks permission tiers with g instead
// of the row policy.
func (m *Manager) WithGuard(g access.Guard) *Manager {
	c := *m
	c.guard = g
	return &c
}

func (m *Manager) Guard() access.Guard {
	return m.guard
}

func (m *Manager) Policy() *access.Policy {
	return m.policy
}

func (m *Manager) DB() *gorm.DB {
	return m.db
}

func (m *Manager) Registry() *schema.Registry {
	return m.registry
}

func (m *Manager) Describe(obj any) (*schema.Descriptor, error) {
	return m.registry.Of(obj)
}

func (m *Manager) Query(ctx context.Context, d *schema.Descriptor) *query.Query {
	return query.New(ctx, m.db, d, m.policy)
}

// Enforce checks action against the manager's guard.
func (m *Manager) Enforce(ctx context.Context, d *schema.Descriptor, obj any, action string) error {
	return access.Enforce(ctx, m.guard, d, obj, action)
}

// Stamp forces ownership columns from the request actor.
func (m *Manager) Stamp(ctx context.Context, obj any) {
	actor := access.ActorFrom(ctx)
	if actor == nil {
		return
	}
	if o, ok := obj.(models.Ownable); ok {
		o.SetOwner(actor.GetID())
	}
	if t, ok := obj.(models.TenantBound); ok {
		t.SetTenant(actor.GetTenantID())
	}
}

// Create inserts obj without touching its associations.
func (m *Manager) Create(ctx context.Context, obj any) error {
	return apperr.FromDB(m.db.WithContext(ctx).Omit(clause.Associations).Create(obj).Error)
}

func (m *Manager) Update(ctx context.Context, obj any) error {
	return apperr.FromDB(m.db.WithContext(ctx).Omit(clause.Associations).Save(obj).Error)
}

func (m *Manager) saveColumns(ctx context.Context, obj any, columns ...string) error {
	columns = append(columns, "updated_at")
	return apperr.FromDB(m.db.WithContext(ctx).Model(obj).Select(columns).Updates(obj).Error)
}

func softDeletable(d *schema.Descriptor, obj any) (models.SoftDeletable, error) {
	sd, ok := obj.(models.SoftDeletable)
	if !ok || !d.SoftDelete {
		return nil, apperr.BadRequest("%s does not support soft delete", d.Kind)
	}
	return sd, nil
}

// SoftDelete flags obj as deleted. It requires WRITE.
func (m *Manager) SoftDelete(ctx context.Context, obj any) error {
	d, err := m.Describe(obj)
	if err != nil {
		return err
	}
	sd, err := softDeletable(d, obj)
	if err != nil {
		return err
	}
	if err := m.Enforce(ctx, d, obj, models.PermWrite); err != nil {
		return err
	}
	sd.MarkDeleted(m.now())
	return m.saveColumns(ctx, obj, "deleted", "deleted_at")
}

// Restore reverses a soft delete. It requires HARD WRITE and fails with
// ErrNotDeleted on an active entity without changing it.
func (m *Manager) Restore(ctx context.Context, obj any) error {
	d, err := m.Describe(obj)
	if err != nil {
		return err
	}
	sd, err := softDeletable(d, obj)
	if err != nil {
		return err
	}
	if err := m.Enforce(ctx, d, obj, models.PermHardWrite); err != nil {
		return err
	}
	if !sd.IsDeleted() {
		return apperr.ErrNotDeleted
	}
	sd.ClearDeleted()
	return m.saveColumns(ctx, obj, "deleted", "deleted_at")
}

// HardDelete removes the row and its many-to-many links. It requires HARD
// WRITE. Related rows stay; a foreign key still pointing at obj fails with
// ErrIntegrity.
func (m *Manager) HardDelete(ctx context.Context, obj any) error {
	d, err := m.Describe(obj)
	if err != nil {
		return err
	}
	if err := m.Enforce(ctx, d, obj, models.PermHardWrite); err != nil {
		return err
	}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range d.Relations {
			if r.Kind != schema.Many2Many {
				continue
			}
			if err := tx.Model(obj).Association(r.FieldName).Clear(); err != nil {
				return fmt.Errorf("unlink %s.%s: %w", d.Kind, r.Name, err)
			}
		}
		return tx.Delete(obj).Error
	})
	return apperr.FromDB(err)
}

// IsUnique reports whether no other visible row of the kind holds value in
// column, within the actor's owner or tenant scope. A non-nil exclude skips
// that primary key.
func (m *Manager) IsUnique(ctx context.Context, d *schema.Descriptor, column string, value any, exclude any) (bool, error) {
	f, ok := d.Field(column)
	if !ok || !f.Meta.Public() || f == d.Extension {
		return false, apperr.BadRequest("No such field: %s", column)
	}

	scope := m.policy.UniqueScope(ctx, d)
	q := m.Query(ctx, d).Where(func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: f.Column}, Value: value})
		for col, v := range scope {
			tx = tx.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: col}, Value: v})
		}
		if exclude != nil {
			tx = tx.Where(clause.Neq{Column: clause.Column{Table: clause.CurrentTable, Name: d.PrimaryKey.Column}, Value: exclude})
		}
		return tx
	})

	taken, err := q.Exists()
	if err != nil {
		return false, fmt.Errorf("check unique %s.%s: %w", d.Kind, column, err)
	}
	return !taken, nil
}
