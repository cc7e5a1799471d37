package schema

import (
	"context"
	"reflect"

	gschema "gorm.io/gorm/schema"
)

const TagName = "vanilla"

type Tenancy int

const (
	Unowned Tenancy = iota
	Owned
	MultiTenant
)

func (t Tenancy) String() string {
	switch t {
	case Owned:
		return "owned"
	case MultiTenant:
		return "multi_tenant"
	}
	return "unowned"
}

type RelationKind string

const (
	BelongsTo RelationKind = RelationKind(gschema.BelongsTo)
	HasOne    RelationKind = RelationKind(gschema.HasOne)
	HasMany   RelationKind = RelationKind(gschema.HasMany)
	Many2Many RelationKind = RelationKind(gschema.Many2Many)
)

type Relation struct {
	Name      string
	FieldName string
	Kind      RelationKind
	Protected bool
	// ForeignKey is the owner column holding the reference; set for BelongsTo only.
	ForeignKey string
	Target     reflect.Type

	gorm *gschema.Relationship
}

func (r *Relation) Clone() *Relation {
	c := *r
	return &c
}

func (r *Relation) Collection() bool {
	return r.Kind == HasMany || r.Kind == Many2Many
}

// Value returns the loaded relation value: a pointer or struct for single
// relations, a slice for collections.
func (r *Relation) Value(ctx context.Context, rv reflect.Value) reflect.Value {
	return r.gorm.Field.ReflectValueOf(ctx, rv)
}

// Descriptor is the explicit schema of one entity kind, built once at startup.
type Descriptor struct {
	Kind       string
	Type       reflect.Type
	Tenancy    Tenancy
	SoftDelete bool
	PrimaryKey *Field
	Fields     []*Field
	Relations  []*Relation
	Extension  *Field
	Extras     []ExtensionField

	columns   map[string]*Field
	relations map[string]*Relation
	registry  *Registry
}

func (d *Descriptor) index() {
	d.columns = make(map[string]*Field, len(d.Fields))
	for _, f := range d.Fields {
		d.columns[f.Column] = f
	}
	d.relations = make(map[string]*Relation, len(d.Relations))
	for _, r := range d.Relations {
		d.relations[r.Name] = r
	}
}

// Clone deep-copies fields and relations, keeping all metadata.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.Fields = make([]*Field, len(d.Fields))
	for i, f := range d.Fields {
		c.Fields[i] = f.Clone()
		if f == d.PrimaryKey {
			c.PrimaryKey = c.Fields[i]
		}
		if f == d.Extension {
			c.Extension = c.Fields[i]
		}
	}
	c.Relations = make([]*Relation, len(d.Relations))
	for i, r := range d.Relations {
		c.Relations[i] = r.Clone()
	}
	c.Extras = append([]ExtensionField(nil), d.Extras...)
	c.index()
	return &c
}

func (d *Descriptor) Field(column string) (*Field, bool) {
	f, ok := d.columns[column]
	return f, ok
}

func (d *Descriptor) Relation(name string) (*Relation, bool) {
	r, ok := d.relations[name]
	return r, ok
}

func (d *Descriptor) Extra(name string) (ExtensionField, bool) {
	for _, e := range d.Extras {
		if e.Name == name {
			return e, true
		}
	}
	return ExtensionField{}, false
}

// Target resolves the descriptor of a relation's entity kind.
func (d *Descriptor) Target(r *Relation) (*Descriptor, error) {
	return d.registry.ofType(r.Target)
}

func (d *Descriptor) New() any {
	return reflect.New(d.Type).Interface()
}

// Value returns the addressable struct behind obj.
func (d *Descriptor) Value(obj any) reflect.Value {
	return reflect.Indirect(reflect.ValueOf(obj))
}

func (d *Descriptor) ID(ctx context.Context, obj any) any {
	v, _ := d.PrimaryKey.Value(ctx, d.Value(obj))
	return v
}

// Persisted reports whether obj already has a stored identity.
func (d *Descriptor) Persisted(ctx context.Context, obj any) bool {
	_, zero := d.PrimaryKey.Value(ctx, d.Value(obj))
	return !zero
}

// Columns lists the public column names, in declaration order.
func (d *Descriptor) Columns() []string {
	cols := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Meta.Public() && f != d.Extension {
			cols = append(cols, f.Column)
		}
	}
	return cols
}
