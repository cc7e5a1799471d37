package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/Kyz7/vanilla/internal/models"
	gschema "gorm.io/gorm/schema"
)

type ExtensionKind string

const (
	ExtString ExtensionKind = "string"
	ExtNumber ExtensionKind = "number"
	ExtBool   ExtensionKind = "bool"
	ExtAny    ExtensionKind = "any"
)

// ExtensionField is an application-defined field stored in the entity's
// extension column.
type ExtensionField struct {
	Name     string
	Kind     ExtensionKind
	Meta     FieldMeta
	Required bool
}

// Accepts reports whether v has the declared JSON kind.
func (e ExtensionField) Accepts(v any) bool {
	if v == nil {
		return !e.Required
	}
	switch e.Kind {
	case ExtString:
		_, ok := v.(string)
		return ok
	case ExtNumber:
		switch v.(type) {
		case float64, float32, int, int64, uint, uint64:
			return true
		}
		return false
	case ExtBool:
		_, ok := v.(bool)
		return ok
	}
	return true
}

// Extension lists extra fields merged into a base entity at build time.
type Extension struct {
	Fields []ExtensionField
}

// ParseExtension reads a comma-separated field list such as
// "phone:string,vip:bool". A field without a kind accepts any JSON value.
func ParseExtension(list string) (Extension, error) {
	var ext Extension
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		name, kind, _ := strings.Cut(item, ":")
		f := ExtensionField{
			Name: strings.TrimSpace(name),
			Kind: ExtensionKind(strings.TrimSpace(kind)),
			Meta: DefaultMeta(),
		}
		if f.Name == "" {
			return Extension{}, fmt.Errorf("extension field without a name in %q", list)
		}
		switch f.Kind {
		case "":
			f.Kind = ExtAny
		case ExtString, ExtNumber, ExtBool, ExtAny:
		default:
			return Extension{}, fmt.Errorf("extension field %s: unknown kind %q", f.Name, f.Kind)
		}
		ext.Fields = append(ext.Fields, f)
	}
	return ext, nil
}

var (
	softDeletable = reflect.TypeOf((*models.SoftDeletable)(nil)).Elem()
	ownable       = reflect.TypeOf((*models.Ownable)(nil)).Elem()
	tenantBound   = reflect.TypeOf((*models.TenantBound)(nil)).Elem()
)

// Registry holds one descriptor per entity kind.
type Registry struct {
	mu         sync.RWMutex
	cache      *sync.Map
	namer      gschema.Namer
	byType     map[reflect.Type]*Descriptor
	byKind     map[string]*Descriptor
	extensions map[reflect.Type]Extension
}

func NewRegistry(namer gschema.Namer) *Registry {
	if namer == nil {
		namer = gschema.NamingStrategy{}
	}
	return &Registry{
		cache:      &sync.Map{},
		namer:      namer,
		byType:     make(map[reflect.Type]*Descriptor),
		byKind:     make(map[string]*Descriptor),
		extensions: make(map[reflect.Type]Extension),
	}
}

func modelType(model any) reflect.Type {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t
}

func (r *Registry) Register(list ...any) error {
	for _, m := range list {
		if _, err := r.Of(m); err != nil {
			return err
		}
	}
	return nil
}

// Extend merges ext into the model's descriptor, rebuilding it if it exists.
func (r *Registry) Extend(model any, ext Extension) error {
	t := modelType(model)

	r.mu.Lock()
	r.extensions[t] = ext
	existing, ok := r.byType[t]
	r.mu.Unlock()

	if !ok {
		_, err := r.Of(model)
		return err
	}

	d := existing.Clone()
	if err := r.applyExtension(d, ext); err != nil {
		return err
	}

	r.mu.Lock()
	r.byType[t] = d
	r.byKind[d.Kind] = d
	r.mu.Unlock()
	return nil
}

func (r *Registry) Of(model any) (*Descriptor, error) {
	return r.ofType(modelType(model))
}

func (r *Registry) MustOf(model any) *Descriptor {
	d, err := r.Of(model)
	if err != nil {
		panic(err)
	}
	return d
}

func (r *Registry) ByKind(kind string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKind[kind]
	return d, ok
}

func (r *Registry) ofType(t reflect.Type) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := r.build(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byType[t]; ok {
		return existing, nil
	}
	r.byType[t] = d
	r.byKind[d.Kind] = d
	return d, nil
}

func (r *Registry) build(t reflect.Type) (*Descriptor, error) {
	s, err := gschema.Parse(reflect.New(t).Interface(), r.cache, r.namer)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", t.Name(), err)
	}

	d := &Descriptor{
		Kind:     s.Table,
		Type:     t,
		registry: r,
	}

	ptr := reflect.PointerTo(t)
	switch {
	case ptr.Implements(tenantBound):
		d.Tenancy = MultiTenant
	case ptr.Implements(ownable):
		d.Tenancy = Owned
	}

	for _, gf := range s.Fields {
		if gf.DBName == "" {
			continue
		}
		f := newField(gf)
		if _, ok := gschema.ParseTagSetting(gf.Tag.Get(TagName), ";")["EXTENSION"]; ok {
			f.Meta.Private = true
			f.Meta.Protected = true
			d.Extension = f
		}
		if gf == s.PrioritizedPrimaryField {
			d.PrimaryKey = f
		}
		d.Fields = append(d.Fields, f)
	}
	if d.PrimaryKey == nil {
		return nil, fmt.Errorf("schema %s has no primary key", t.Name())
	}

	_, hasDeleted := s.FieldsByDBName["deleted"]
	d.SoftDelete = hasDeleted && ptr.Implements(softDeletable)

	for _, rel := range s.Relationships.Relations {
		if rel.Field == nil {
			continue
		}
		relation := &Relation{
			Name:      r.namer.ColumnName("", rel.Name),
			FieldName: rel.Name,
			Kind:      RelationKind(rel.Type),
			Protected: true,
			Target:    rel.FieldSchema.ModelType,
			gorm:      rel,
		}
		if _, ok := gschema.ParseTagSetting(rel.Field.Tag.Get(TagName), ";")["UNPROTECTED"]; ok {
			relation.Protected = false
		}
		if relation.Kind == BelongsTo && len(rel.References) > 0 {
			relation.ForeignKey = rel.References[0].ForeignKey.DBName
		}
		d.Relations = append(d.Relations, relation)
	}
	sort.Slice(d.Relations, func(i, j int) bool { return d.Relations[i].Name < d.Relations[j].Name })
	d.index()

	r.mu.RLock()
	ext, ok := r.extensions[t]
	r.mu.RUnlock()
	if ok {
		if err := r.applyExtension(d, ext); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (r *Registry) applyExtension(d *Descriptor, ext Extension) error {
	if len(ext.Fields) == 0 {
		return nil
	}
	if d.Extension == nil {
		return fmt.Errorf("%s has no extension column", d.Kind)
	}
	d.Extras = d.Extras[:0]
	for _, f := range ext.Fields {
		if _, clash := d.Field(f.Name); clash {
			return fmt.Errorf("extension field %s clashes with a %s column", f.Name, d.Kind)
		}
		if f.Kind == "" {
			f.Kind = ExtAny
		}
		d.Extras = append(d.Extras, f)
	}
	return nil
}
