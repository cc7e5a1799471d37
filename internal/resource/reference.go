package resource

import "fmt"

type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Permission  string `json:"permission,omitempty"`
}

type FieldReference struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	Unique    bool   `json:"unique,omitempty"`
	ReadOnly  bool   `json:"read_only,omitempty"`
	Immutable bool   `json:"immutable,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Extension bool   `json:"extension,omitempty"`
}

type RelationReference struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Protected bool   `json:"protected"`
}

// Reference documents one resource as clients see it. Private columns are
// left out.
type Reference struct {
	Name        string              `json:"name"`
	Kind        string              `json:"kind"`
	Tenancy     string              `json:"tenancy"`
	SoftDelete  bool                `json:"soft_delete"`
	Description string              `json:"description"`
	BaseURL     string              `json:"base_url"`
	Endpoints   []Endpoint          `json:"endpoints"`
	Fields      []FieldReference    `json:"fields"`
	Relations   []RelationReference `json:"relations"`
}

func (s *Service[T]) Reference(baseURL string) Reference {
	d := s.desc
	ref := Reference{
		Name:        s.name,
		Kind:        d.Kind,
		Tenancy:     d.Tenancy.String(),
		SoftDelete:  d.SoftDelete,
		Description: fmt.Sprintf("API Reference for %s", s.name),
		BaseURL:     baseURL,
		Endpoints:   s.endpoints(),
		Fields:      []FieldReference{},
		Relations:   []RelationReference{},
	}

	for _, f := range d.Fields {
		if !f.Meta.Public() || f == d.Extension {
			continue
		}
		ref.Fields = append(ref.Fields, FieldReference{
			Name:      f.Column,
			Type:      f.DataType,
			Required:  f.Required(),
			Unique:    f.Meta.Unique,
			ReadOnly:  f.Meta.Protected || f.PrimaryKey,
			Immutable: !f.Meta.Mutable,
			MaxLength: f.Size,
		})
	}
	for _, e := range d.Extras {
		if !e.Meta.Public() {
			continue
		}
		ref.Fields = append(ref.Fields, FieldReference{
			Name:      e.Name,
			Type:      string(e.Kind),
			Required:  e.Required,
			ReadOnly:  e.Meta.Protected,
			Immutable: !e.Meta.Mutable,
			Extension: true,
		})
	}
	for _, r := range d.Relations {
		ref.Relations = append(ref.Relations, RelationReference{
			Name:      r.Name,
			Kind:      string(r.Kind),
			Protected: r.Protected,
		})
	}
	return ref
}

func (s *Service[T]) endpoints() []Endpoint {
	base := "/" + s.name
	all := []struct {
		method Method
		ep     Endpoint
	}{
		{MethodList, Endpoint{"GET", base, fmt.Sprintf("List %s. Filters: <field>=v, <field>-min, <field>-max, <field>-like; page, limit, sort_by, decs, with-deleted, include", s.name), "READ"}},
		{MethodGet, Endpoint{"GET", base + "/:id", "Get one entity", "READ"}},
		{MethodCreate, Endpoint{"POST", base, "Create an entity", "WRITE"}},
		{MethodUpdate, Endpoint{"PUT", base + "/:id", "Update an entity", "WRITE"}},
		{MethodSoftDelete, Endpoint{"DELETE", base + "/:id", "Soft delete an entity", "WRITE"}},
		{MethodHardDelete, Endpoint{"DELETE", base + "/:id/hard-delete", "Remove an entity permanently", "HARD WRITE"}},
		{MethodDeleteAll, Endpoint{"DELETE", base + "/delete-all", `Remove every entity in {"id_list": [...]}`, "HARD WRITE"}},
		{MethodRestore, Endpoint{"POST", base + "/:id/restore", "Restore a soft-deleted entity", "HARD WRITE"}},
		{MethodIsUnique, Endpoint{"GET", base + "/:field/is-unique/:value", "Check whether a value is still free", "READ"}},
	}

	var out []Endpoint
	for _, e := range all {
		if s.Allows(e.method) {
			out = append(out, e.ep)
		}
	}
	return out
}
