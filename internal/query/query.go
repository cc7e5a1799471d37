package query

import (
	"context"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Query builds scoped reads for one entity kind. Toggles return a new Query;
// Build always starts again from the base session so toggles compose.
type Query struct {
	ctx    context.Context
	db     *gorm.DB
	desc   *schema.Descriptor
	policy *access.Policy

	withDeleted bool
	withAccess  bool
	raw         bool
	includes    []*schema.Relation
	scopes      []func(*gorm.DB) *gorm.DB
}

func New(ctx context.Context, db *gorm.DB, d *schema.Descriptor, p *access.Policy) *Query {
	return &Query{ctx: ctx, db: db, desc: d, policy: p}
}

func (q *Query) clone() *Query {
	c := *q
	c.includes = append([]*schema.Relation(nil), q.includes...)
	c.scopes = append([]func(*gorm.DB) *gorm.DB(nil), q.scopes...)
	return &c
}

func (q *Query) WithDeleted() *Query {
	c := q.clone()
	c.withDeleted = true
	return c
}

func (q *Query) WithAccessCheck() *Query {
	c := q.clone()
	c.withAccess = true
	return c
}

// Raw disables both the soft-delete and the access filter.
func (q *Query) Raw() *Query {
	c := q.clone()
	c.raw = true
	return c
}

// Where adds caller conditions, applied after the visibility filters.
func (q *Query) Where(scopes ...func(*gorm.DB) *gorm.DB) *Query {
	c := q.clone()
	c.scopes = append(c.scopes, scopes...)
	return c
}

// Include eager-loads the named relations. Unknown names are a client error.
func (q *Query) Include(names ...string) (*Query, error) {
	c := q.clone()
	for _, name := range names {
		if name == "" {
			continue
		}
		rel, ok := q.desc.Relation(name)
		if !ok {
			return nil, apperr.BadRequest("No such relation: %s", name)
		}
		c.includes = append(c.includes, rel)
	}
	return c, nil
}

func (q *Query) Descriptor() *schema.Descriptor {
	return q.desc
}

func notDeleted(tx *gorm.DB) *gorm.DB {
	return tx.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "deleted"}, Value: false})
}

// base applies model, soft-delete filter, access filter and caller scopes.
func (q *Query) base() *gorm.DB {
	tx := q.db.WithContext(q.ctx).Model(q.desc.New())
	if !q.raw {
		if q.desc.SoftDelete && !q.withDeleted {
			tx = notDeleted(tx)
		}
		if q.withAccess && q.policy != nil {
			tx = tx.Scopes(q.policy.Scope(q.ctx, q.desc))
		}
	}
	if len(q.scopes) > 0 {
		tx = tx.Scopes(q.scopes...)
	}
	return tx
}

// Build returns the session for the current toggle set. Relations are
// preloaded last and never include soft-deleted rows.
func (q *Query) Build() *gorm.DB {
	tx := q.base()
	for _, rel := range q.includes {
		target, err := q.desc.Target(rel)
		if err == nil && target.SoftDelete {
			tx = tx.Preload(rel.FieldName, notDeleted)
			continue
		}
		tx = tx.Preload(rel.FieldName)
	}
	return tx
}

// Get loads one entity by primary key into dest.
func (q *Query) Get(dest any, id any) error {
	pk := clause.Column{Table: clause.CurrentTable, Name: q.desc.PrimaryKey.Column}
	err := q.Build().Where(clause.Eq{Column: pk, Value: id}).Take(dest).Error
	return apperr.FromDB(err)
}

// GetWithDeleted bypasses the soft-delete filter; the restore path uses it.
func (q *Query) GetWithDeleted(dest any, id any) error {
	return q.WithDeleted().Get(dest, id)
}

func (q *Query) Find(dest any) error {
	return apperr.FromDB(q.Build().Find(dest).Error)
}

// Count ignores includes; gorm refuses preloads on count queries.
func (q *Query) Count() (int64, error) {
	var n int64
	err := q.base().Count(&n).Error
	return n, apperr.FromDB(err)
}

func (q *Query) Exists() (bool, error) {
	n, err := q.Count()
	return n > 0, err
}
