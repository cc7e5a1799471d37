package entity

import (
	"context"
	"reflect"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/schema"
)

// ToAPI projects obj onto its public columns. Named relations must already
// be loaded; each related row appears only when it is live and readable by
// the actor, and is projected without its own relations.
func (m *Manager) ToAPI(ctx context.Context, obj any, include ...string) (map[string]any, error) {
	d, err := m.Describe(obj)
	if err != nil {
		return nil, err
	}
	rels := make([]*schema.Relation, 0, len(include))
	for _, name := range include {
		r, ok := d.Relation(name)
		if !ok {
			return nil, apperr.BadRequest("No such relation: %s", name)
		}
		rels = append(rels, r)
	}

	data := project(ctx, d, obj)
	rv := d.Value(obj)
	for _, r := range rels {
		target, err := d.Target(r)
		if err != nil {
			return nil, err
		}
		val := r.Value(ctx, rv)

		if r.Collection() {
			items := make([]map[string]any, 0, val.Len())
			for i := 0; i < val.Len(); i++ {
				if item, ok := addr(val.Index(i)); ok && m.readable(ctx, target, item) {
					items = append(items, project(ctx, target, item))
				}
			}
			data[r.Name] = items
			continue
		}

		data[r.Name] = nil
		if item, ok := addr(val); ok && m.readable(ctx, target, item) {
			data[r.Name] = project(ctx, target, item)
		}
	}
	return data, nil
}

// ToAPIList projects every element of a slice of entities.
func (m *Manager) ToAPIList(ctx context.Context, list any, include ...string) ([]map[string]any, error) {
	rv := reflect.Indirect(reflect.ValueOf(list))
	out := make([]map[string]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, ok := addr(rv.Index(i))
		if !ok {
			continue
		}
		data, err := m.ToAPI(ctx, item, include...)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (m *Manager) readable(ctx context.Context, d *schema.Descriptor, obj any) bool {
	if sd, ok := obj.(models.SoftDeletable); ok && d.SoftDelete && sd.IsDeleted() {
		return false
	}
	return m.policy.Check(ctx, d, obj, models.PermRead)
}

func project(ctx context.Context, d *schema.Descriptor, obj any) map[string]any {
	rv := d.Value(obj)
	data := make(map[string]any, len(d.Fields)+len(d.Extras))
	for _, f := range d.Fields {
		if f == d.Extension || !f.Meta.Public() {
			continue
		}
		v, _ := f.Value(ctx, rv)
		data[f.Column] = v
	}
	ext := extensionOf(ctx, d, rv)
	for _, e := range d.Extras {
		if e.Meta.Public() {
			data[e.Name] = ext[e.Name]
		}
	}
	if x, ok := obj.(APIExtender); ok {
		x.ExtendAPI(data)
	}
	return data
}

// addr returns a pointer to the struct held by v, or false when v is an
// unset relation.
func addr(v reflect.Value) (any, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		if v.IsZero() || !v.CanAddr() {
			return nil, false
		}
		return v.Addr().Interface(), true
	}
	return nil, false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}
