package resource

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/audit"
	"github.com/Kyz7/vanilla/internal/entity"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/query"
	"github.com/Kyz7/vanilla/internal/schema"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gschema "gorm.io/gorm/schema"
)

type Method string

const (
	MethodGet        Method = "get"
	MethodList       Method = "list"
	MethodCreate     Method = "create"
	MethodUpdate     Method = "update"
	MethodSoftDelete Method = "soft_delete"
	MethodHardDelete Method = "hard_delete"
	MethodDeleteAll  Method = "delete_all"
	MethodRestore    Method = "restore"
	MethodIsUnique   Method = "is_unique"
)

func AllMethods() []Method {
	return []Method{
		MethodGet, MethodList, MethodCreate, MethodUpdate, MethodSoftDelete,
		MethodHardDelete, MethodDeleteAll, MethodRestore, MethodIsUnique,
	}
}

// Hooks run around each mutation. A hook error aborts the operation before
// anything is committed (pre hooks) or is returned after the commit (post
// hooks).
type Hooks[T any] struct {
	// Stamp replaces the default ownership stamp on create.
	Stamp         func(ctx context.Context, obj *T) error
	PreCreate     func(ctx context.Context, obj *T, data map[string]any) error
	PostCreate    func(ctx context.Context, obj *T) error
	PreUpdate     func(ctx context.Context, obj *T, data map[string]any) error
	PostUpdate    func(ctx context.Context, obj *T) error
	PreDelete     func(ctx context.Context, obj *T, hard bool) error
	PostDelete    func(ctx context.Context, obj *T, hard bool) error
	PreRestore    func(ctx context.Context, obj *T) error
	PostRestore   func(ctx context.Context, obj *T) error
	PreDeleteAll  func(ctx context.Context, ids []any) error
	PostDeleteAll func(ctx context.Context, ids []any) error
}

type Config[T any] struct {
	// Name is the route prefix; defaults to the table name.
	Name       string
	Methods    []Method
	MaxResults int
	// Guard replaces the row policy for permission checks.
	Guard access.Guard
	// Scope narrows every read, after the access filter.
	Scope func(ctx context.Context) func(*gorm.DB) *gorm.DB
	Hooks Hooks[T]
}

// Page is one list result. Total is counted only for paged requests.
type Page struct {
	Items []map[string]any
	Total int64
	Page  int
	Limit int
	Paged bool
}

// Service exposes the entity lifecycle of one kind to the REST binder.
type Service[T any] struct {
	name       string
	mgr        *entity.Manager
	desc       *schema.Descriptor
	tracker    *audit.Tracker
	log        zerolog.Logger
	methods    map[Method]bool
	maxResults int
	scope      func(ctx context.Context) func(*gorm.DB) *gorm.DB
	hooks      Hooks[T]
}

const defaultMaxResults = 100

func NewService[T any](mgr *entity.Manager, tracker *audit.Tracker, log zerolog.Logger, cfg Config[T]) (*Service[T], error) {
	d, err := mgr.Describe(new(T))
	if err != nil {
		return nil, err
	}
	if cfg.Guard != nil {
		mgr = mgr.WithGuard(cfg.Guard)
	}

	s := &Service[T]{
		name:       cfg.Name,
		mgr:        mgr,
		desc:       d,
		tracker:    tracker,
		log:        log.With().Str("resource", d.Kind).Logger(),
		methods:    make(map[Method]bool),
		maxResults: cfg.MaxResults,
		scope:      cfg.Scope,
		hooks:      cfg.Hooks,
	}
	if s.name == "" {
		s.name = d.Kind
	}
	if s.maxResults <= 0 {
		s.maxResults = defaultMaxResults
	}

	methods := cfg.Methods
	if len(methods) == 0 {
		methods = AllMethods()
	}
	for _, m := range methods {
		if !d.SoftDelete && (m == MethodSoftDelete || m == MethodRestore) {
			continue
		}
		s.methods[m] = true
	}
	return s, nil
}

func (s *Service[T]) Name() string {
	return s.name
}

func (s *Service[T]) Descriptor() *schema.Descriptor {
	return s.desc
}

func (s *Service[T]) Manager() *entity.Manager {
	return s.mgr
}

func (s *Service[T]) Allows(m Method) bool {
	return s.methods[m]
}

func (s *Service[T]) query(ctx context.Context) *query.Query {
	q := s.mgr.Query(ctx, s.desc)
	if s.scope != nil {
		q = q.Where(s.scope(ctx))
	}
	return q
}

// parseID converts a path id to the primary key type. A malformed id can
// never match a row, so it reads as not found.
func (s *Service[T]) parseID(raw string) (any, error) {
	switch gschema.DataType(s.desc.PrimaryKey.DataType) {
	case gschema.Uint:
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, apperr.ErrNotFound
		}
		return id, nil
	case gschema.Int:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperr.ErrNotFound
		}
		return id, nil
	}
	return raw, nil
}

// load fetches an entity visible to the actor. Invisible rows read as not
// found, never as forbidden.
func (s *Service[T]) load(ctx context.Context, rawID string, withDeleted bool, include ...string) (*T, error) {
	id, err := s.parseID(rawID)
	if err != nil {
		return nil, err
	}
	q, err := s.query(ctx).WithAccessCheck().Include(include...)
	if err != nil {
		return nil, err
	}
	if withDeleted {
		q = q.WithDeleted()
	}
	obj := new(T)
	if err := q.Get(obj, id); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *Service[T]) Get(ctx context.Context, rawID string, include ...string) (map[string]any, error) {
	obj, err := s.load(ctx, rawID, false, include...)
	if err != nil {
		return nil, err
	}
	if !s.mgr.Guard().Check(ctx, s.desc, obj, models.PermRead) {
		return nil, apperr.ErrNotFound
	}
	return s.mgr.ToAPI(ctx, obj, include...)
}

func (s *Service[T]) List(ctx context.Context, params map[string]string) (*Page, error) {
	p, err := query.ParseList(s.desc, params, s.maxResults)
	if err != nil {
		return nil, err
	}

	q, err := s.query(ctx).WithAccessCheck().Include(p.Include...)
	if err != nil {
		return nil, err
	}
	if p.WithDeleted && s.mgr.Policy().CanReadDeleted(ctx, s.desc) {
		q = q.WithDeleted()
	}
	q = q.Where(p.Scope(s.desc))

	page := &Page{Page: p.Page, Limit: p.Limit, Paged: p.Paged()}
	if page.Paged {
		if page.Total, err = q.Count(); err != nil {
			return nil, err
		}
	}

	list := make([]T, 0)
	if err := q.Where(p.Window).Find(&list); err != nil {
		return nil, err
	}
	page.Items, err = s.mgr.ToAPIList(ctx, &list, p.Include...)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service[T]) stamp(ctx context.Context, obj *T) error {
	if s.hooks.Stamp != nil {
		return s.hooks.Stamp(ctx, obj)
	}
	s.mgr.Stamp(ctx, obj)
	return nil
}

func (s *Service[T]) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	obj := new(T)
	if err := s.mgr.Populate(ctx, obj, data); err != nil {
		return nil, err
	}
	if err := s.stamp(ctx, obj); err != nil {
		return nil, err
	}
	if err := s.mgr.Enforce(ctx, s.desc, obj, models.PermWrite); err != nil {
		return nil, err
	}
	if s.hooks.PreCreate != nil {
		if err := s.hooks.PreCreate(ctx, obj, data); err != nil {
			return nil, err
		}
	}
	if err := s.mgr.ValidateOnCreate(ctx, obj, data); err != nil {
		return nil, err
	}
	if err := s.mgr.Create(ctx, obj); err != nil {
		return nil, err
	}
	if s.hooks.PostCreate != nil {
		if err := s.hooks.PostCreate(ctx, obj); err != nil {
			return nil, err
		}
	}
	s.record(ctx, obj, audit.Created)
	return s.mgr.ToAPI(ctx, obj)
}

func (s *Service[T]) Update(ctx context.Context, rawID string, data map[string]any) (map[string]any, error) {
	obj, err := s.load(ctx, rawID, false)
	if err != nil {
		return nil, err
	}
	if err := s.mgr.Enforce(ctx, s.desc, obj, models.PermWrite); err != nil {
		return nil, err
	}
	if s.hooks.PreUpdate != nil {
		if err := s.hooks.PreUpdate(ctx, obj, data); err != nil {
			return nil, err
		}
	}
	if err := s.mgr.Populate(ctx, obj, data); err != nil {
		return nil, err
	}
	if err := s.mgr.Validate(ctx, obj); err != nil {
		return nil, err
	}
	if err := s.mgr.Update(ctx, obj); err != nil {
		return nil, err
	}
	if s.hooks.PostUpdate != nil {
		if err := s.hooks.PostUpdate(ctx, obj); err != nil {
			return nil, err
		}
	}
	s.record(ctx, obj, audit.Updated)
	return s.mgr.ToAPI(ctx, obj)
}

func (s *Service[T]) SoftDelete(ctx context.Context, rawID string) error {
	obj, err := s.load(ctx, rawID, false)
	if err != nil {
		return err
	}
	if err := s.mgr.Enforce(ctx, s.desc, obj, models.PermWrite); err != nil {
		return err
	}
	if s.hooks.PreDelete != nil {
		if err := s.hooks.PreDelete(ctx, obj, false); err != nil {
			return err
		}
	}
	if err := s.mgr.SoftDelete(ctx, obj); err != nil {
		return err
	}
	if s.hooks.PostDelete != nil {
		if err := s.hooks.PostDelete(ctx, obj, false); err != nil {
			return err
		}
	}
	s.record(ctx, obj, audit.Deleted)
	return nil
}

// HardDelete removes a row, live or soft-deleted.
func (s *Service[T]) HardDelete(ctx context.Context, rawID string) error {
	obj, err := s.load(ctx, rawID, true)
	if err != nil {
		return err
	}
	if err := s.mgr.Enforce(ctx, s.desc, obj, models.PermHardWrite); err != nil {
		return err
	}
	if s.hooks.PreDelete != nil {
		if err := s.hooks.PreDelete(ctx, obj, true); err != nil {
			return err
		}
	}
	if err := s.mgr.HardDelete(ctx, obj); err != nil {
		return err
	}
	if s.hooks.PostDelete != nil {
		if err := s.hooks.PostDelete(ctx, obj, true); err != nil {
			return err
		}
	}
	s.record(ctx, obj, audit.Deleted)
	return nil
}

// DeleteAll hard-deletes each id independently. Missing, forbidden or
// failing ids are logged and skipped; the ids actually deleted are returned.
func (s *Service[T]) DeleteAll(ctx context.Context, ids []any) ([]any, error) {
	if s.hooks.PreDeleteAll != nil {
		if err := s.hooks.PreDeleteAll(ctx, ids); err != nil {
			return nil, err
		}
	}

	deleted := make([]any, 0, len(ids))
	for _, raw := range ids {
		if err := s.deleteOne(ctx, raw); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				s.log.Error().Err(err).Interface("id", raw).Msg("Failed to delete entity")
			}
			continue
		}
		deleted = append(deleted, raw)
	}

	if s.hooks.PostDeleteAll != nil {
		if err := s.hooks.PostDeleteAll(ctx, deleted); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *Service[T]) deleteOne(ctx context.Context, raw any) error {
	rawID := fmt.Sprint(raw)
	if f, ok := raw.(float64); ok {
		rawID = strconv.FormatFloat(f, 'f', -1, 64)
	}
	obj, err := s.load(ctx, rawID, true)
	if err != nil {
		return err
	}
	if err := s.mgr.HardDelete(ctx, obj); err != nil {
		return err
	}
	s.record(ctx, obj, audit.Deleted)
	return nil
}

func (s *Service[T]) Restore(ctx context.Context, rawID string) (map[string]any, error) {
	obj, err := s.load(ctx, rawID, true)
	if err != nil {
		return nil, err
	}
	if err := s.mgr.Enforce(ctx, s.desc, obj, models.PermHardWrite); err != nil {
		return nil, err
	}
	if s.hooks.PreRestore != nil {
		if err := s.hooks.PreRestore(ctx, obj); err != nil {
			return nil, err
		}
	}
	if err := s.mgr.Restore(ctx, obj); err != nil {
		return nil, err
	}
	if s.hooks.PostRestore != nil {
		if err := s.hooks.PostRestore(ctx, obj); err != nil {
			return nil, err
		}
	}
	s.record(ctx, obj, audit.Restored)
	return s.mgr.ToAPI(ctx, obj)
}

// IsUnique converts value to the column type before checking. A value that
// does not convert is a client error.
func (s *Service[T]) IsUnique(ctx context.Context, column, value string) (bool, error) {
	p, err := query.ParseList(s.desc, map[string]string{column: value}, s.maxResults)
	if err != nil || len(p.Filters) != 1 {
		if _, ok := s.desc.Field(column); !ok || err == nil {
			return false, apperr.BadRequest("No such field: %s", column)
		}
		return false, apperr.BadRequest("Invalid value")
	}
	return s.mgr.IsUnique(ctx, s.desc, column, p.Filters[0].Value, nil)
}

func (s *Service[T]) record(ctx context.Context, obj *T, action string) {
	if s.tracker == nil {
		return
	}
	s.tracker.Record(ctx, s.desc.Kind, s.desc.ID(ctx, obj), obj, action, "")
}
