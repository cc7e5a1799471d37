package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/schema"
	"gorm.io/datatypes"
	gschema "gorm.io/gorm/schema"
)

var jsonType = reflect.TypeOf(datatypes.JSON(nil))

var typeNames = map[gschema.DataType]string{
	gschema.Bool:   "boolean",
	gschema.Int:    "integer",
	gschema.Uint:   "positive integer",
	gschema.Float:  "number",
	gschema.String: "string",
	gschema.Time:   "datetime",
}

func invalid(f *schema.Field) string {
	name, ok := typeNames[gschema.DataType(f.DataType)]
	if !ok {
		name = f.DataType
	}
	return "Should be a valid " + name
}

// Populate assigns untrusted input to obj. The id key, unknown keys,
// private and protected columns are skipped, as are immutable columns and
// natural keys once obj is persisted. Every rejected value is reported
// together.
func (m *Manager) Populate(ctx context.Context, obj any, data map[string]any) error {
	d, err := m.Describe(obj)
	if err != nil {
		return err
	}
	rv := d.Value(obj)
	persisted := d.Persisted(ctx, obj)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := apperr.FieldErrors{}
	extra := map[string]any{}
	for _, key := range keys {
		if key == "id" {
			continue
		}
		value := data[key]

		if f, ok := d.Field(key); ok {
			if f == d.Extension || !f.Meta.Writable(persisted) || (f.PrimaryKey && persisted) {
				continue
			}
			msg, err := m.assign(ctx, d, f, obj, value, persisted)
			if err != nil {
				return err
			}
			if msg != "" {
				errs.Add(key, msg)
			}
			continue
		}

		e, ok := d.Extra(key)
		if !ok || !e.Meta.Writable(persisted) {
			continue
		}
		if !e.Accepts(value) {
			errs.Add(key, "Should be a valid "+string(e.Kind))
			continue
		}
		extra[key] = value
	}

	if len(extra) > 0 {
		ext := extensionOf(ctx, d, rv)
		if ext == nil {
			ext = datatypes.JSONMap{}
		}
		for k, v := range extra {
			ext[k] = v
		}
		if err := d.Extension.Set(ctx, rv, ext); err != nil {
			return fmt.Errorf("set %s extension: %w", d.Kind, err)
		}
	}
	return errs.Err()
}

// assign sets one column. It returns a field message for rejected input and
// an error only when the uniqueness lookup fails.
func (m *Manager) assign(ctx context.Context, d *schema.Descriptor, f *schema.Field, obj any, value any, persisted bool) (string, error) {
	value, ok := m.coerce(f, value)
	if !ok {
		return invalid(f), nil
	}
	if s, isStr := value.(string); isStr && f.Size > 0 && utf8.RuneCountInString(s) > f.Size {
		return fmt.Sprintf("Max length is %d", f.Size), nil
	}

	rv := d.Value(obj)
	before, _ := f.Value(ctx, rv)
	if err := f.Set(ctx, rv, value); err != nil {
		return invalid(f), nil
	}
	if !f.Meta.Unique || value == nil {
		return "", nil
	}

	after, _ := f.Value(ctx, rv)
	if persisted && reflect.DeepEqual(before, after) {
		return "", nil
	}
	var exclude any
	if persisted {
		exclude = d.ID(ctx, obj)
	}
	free, err := m.IsUnique(ctx, d, f.Column, after, exclude)
	if err != nil {
		return "", err
	}
	if !free {
		return "Already taken", nil
	}
	return "", nil
}

// coerce checks a decoded JSON value against the column type before the
// reflective set, which would otherwise truncate or stringify it.
func (m *Manager) coerce(f *schema.Field, value any) (any, bool) {
	if value == nil {
		return nil, true
	}
	if f.Type() == jsonType {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, false
		}
		return datatypes.JSON(raw), true
	}

	switch gschema.DataType(f.DataType) {
	case gschema.String:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		if f.Meta.HTML {
			s = m.html.Sanitize(s)
		}
		return s, true
	case gschema.Bool:
		_, ok := value.(bool)
		return value, ok
	case gschema.Int, gschema.Uint:
		n, ok := value.(float64)
		if !ok {
			// numeric strings are handled by the column setter
			_, isStr := value.(string)
			return value, isStr
		}
		if n != math.Trunc(n) || (f.DataType == string(gschema.Uint) && n < 0) {
			return nil, false
		}
		return value, true
	case gschema.Float:
		switch value.(type) {
		case float64, string:
			return value, true
		}
		return nil, false
	case gschema.Time:
		_, ok := value.(string)
		return value, ok
	}
	return value, true
}

func extensionOf(ctx context.Context, d *schema.Descriptor, rv reflect.Value) datatypes.JSONMap {
	if d.Extension == nil {
		return nil
	}
	v, _ := d.Extension.Value(ctx, rv)
	ext, _ := v.(datatypes.JSONMap)
	return ext
}
