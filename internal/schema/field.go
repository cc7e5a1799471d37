package schema

import (
	"context"
	"reflect"

	gschema "gorm.io/gorm/schema"
)

// FieldMeta is the visibility and mutability metadata carried by a column.
type FieldMeta struct {
	Protected bool
	Mutable   bool
	Private   bool
	Unique    bool
	HTML      bool
}

func DefaultMeta() FieldMeta {
	return FieldMeta{Mutable: true}
}

// Public reports whether the column may be read by clients.
func (m FieldMeta) Public() bool {
	return !m.Private
}

// Writable reports whether the column may be populated from client input.
func (m FieldMeta) Writable(persisted bool) bool {
	if m.Private || m.Protected {
		return false
	}
	return m.Mutable || !persisted
}

func metaFromTag(tag string) FieldMeta {
	meta := DefaultMeta()
	settings := gschema.ParseTagSetting(tag, ";")
	if _, ok := settings["PROTECTED"]; ok {
		meta.Protected = true
	}
	if _, ok := settings["PRIVATE"]; ok {
		meta.Private = true
	}
	if _, ok := settings["IMMUTABLE"]; ok {
		meta.Mutable = false
	}
	if _, ok := settings["UNIQUE"]; ok {
		meta.Unique = true
	}
	if _, ok := settings["HTML"]; ok {
		meta.HTML = true
	}
	return meta
}

type Field struct {
	Name          string
	Column        string
	DataType      string
	Size          int
	Meta          FieldMeta
	PrimaryKey    bool
	NotNull       bool
	HasDefault    bool
	AutoIncrement bool

	gorm *gschema.Field
}

func newField(f *gschema.Field) *Field {
	return &Field{
		Name:          f.Name,
		Column:        f.DBName,
		DataType:      string(f.DataType),
		Size:          f.Size,
		Meta:          metaFromTag(f.Tag.Get(TagName)),
		PrimaryKey:    f.PrimaryKey,
		NotNull:       f.NotNull,
		HasDefault:    f.HasDefaultValue,
		AutoIncrement: f.AutoIncrement,
		gorm:          f,
	}
}

// Clone copies the field together with every metadata flag.
func (f *Field) Clone() *Field {
	c := *f
	return &c
}

// Required reports whether the column must be supplied on create. Natural
// primary keys count as required; generated ones do not.
func (f *Field) Required() bool {
	if !f.Meta.Public() || f.HasDefault || f.AutoIncrement {
		return false
	}
	return f.NotNull || f.PrimaryKey
}

func (f *Field) Type() reflect.Type {
	return f.gorm.FieldType
}

// Value reads the column from an entity struct value.
func (f *Field) Value(ctx context.Context, rv reflect.Value) (any, bool) {
	return f.gorm.ValueOf(ctx, rv)
}

// Set assigns v, converting between compatible types.
func (f *Field) Set(ctx context.Context, rv reflect.Value, v any) error {
	return f.gorm.Set(ctx, rv, v)
}
