package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gschema "gorm.io/gorm/schema"
)

type Op string

const (
	OpEq   Op = "eq"
	OpMin  Op = "min"
	OpMax  Op = "max"
	OpLike Op = "like"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func (f Filter) expression() clause.Expression {
	col := clause.Column{Table: clause.CurrentTable, Name: f.Column}
	switch f.Op {
	case OpMin:
		return clause.Gte{Column: col, Value: f.Value}
	case OpMax:
		return clause.Lte{Column: col, Value: f.Value}
	case OpLike:
		return clause.Like{Column: col, Value: f.Value}
	}
	return clause.Eq{Column: col, Value: f.Value}
}

// ListParams is the parsed form of a list request's query string.
type ListParams struct {
	Filters     []Filter
	Page        int
	Limit       int
	SortBy      string
	Desc        bool
	WithDeleted bool
	Include     []string
}

func (p ListParams) Paged() bool {
	return p.Page > 0
}

func (p ListParams) Offset() int {
	if !p.Paged() {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Scope applies filters and ordering.
func (p ListParams) Scope(d *schema.Descriptor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		for _, f := range p.Filters {
			tx = tx.Where(f.expression())
		}
		sortBy := p.SortBy
		if sortBy == "" {
			sortBy = d.PrimaryKey.Column
		}
		return tx.Order(clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: sortBy},
			Desc:   p.Desc,
		})
	}
}

// Window applies offset and limit.
func (p ListParams) Window(tx *gorm.DB) *gorm.DB {
	return tx.Offset(p.Offset()).Limit(p.Limit)
}

var reserved = map[string]bool{
	"page":         true,
	"limit":        true,
	"sort_by":      true,
	"decs":         true,
	"with-deleted": true,
	"include":      true,
}

// ParseList reads filters and paging from query parameters. Filters apply
// only to public columns; unknown keys are ignored and malformed values are
// rejected.
func ParseList(d *schema.Descriptor, params map[string]string, maxResults int) (ListParams, error) {
	p := ListParams{Limit: maxResults}

	if v := params["page"]; v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return p, apperr.BadRequest("Invalid page: %s", v)
		}
		p.Page = page
	}
	if v := params["limit"]; v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return p, apperr.BadRequest("Invalid limit: %s", v)
		}
		if limit < maxResults {
			p.Limit = limit
		}
	}
	if v := params["sort_by"]; v != "" {
		f, ok := d.Field(v)
		if !ok || !f.Meta.Public() {
			return p, apperr.BadRequest("Invalid sort_by: %s", v)
		}
		p.SortBy = f.Column
	}

	var err error
	if p.Desc, err = parseFlag(params, "decs"); err != nil {
		return p, err
	}
	if p.WithDeleted, err = parseFlag(params, "with-deleted"); err != nil {
		return p, err
	}
	if v := params["include"]; v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				p.Include = append(p.Include, name)
			}
		}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		column, op := key, OpEq
		for _, suffix := range []Op{OpMin, OpMax, OpLike} {
			if strings.HasSuffix(key, "-"+string(suffix)) {
				column, op = strings.TrimSuffix(key, "-"+string(suffix)), suffix
				break
			}
		}
		f, ok := d.Field(column)
		if !ok || !f.Meta.Public() || f == d.Extension {
			continue
		}
		value, err := convert(f, op, params[key])
		if err != nil {
			return p, err
		}
		p.Filters = append(p.Filters, Filter{Column: f.Column, Op: op, Value: value})
	}
	return p, nil
}

func parseFlag(params map[string]string, key string) (bool, error) {
	v := params[key]
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.BadRequest("Invalid %s: %s", key, v)
	}
	return b, nil
}

// convert parses a raw query value into the column's type.
func convert(f *schema.Field, op Op, raw string) (any, error) {
	if op == OpLike {
		if f.DataType != string(gschema.String) {
			return nil, apperr.BadRequest("%s-like requires a text column", f.Column)
		}
		return raw, nil
	}

	var (
		v   any
		err error
	)
	switch gschema.DataType(f.DataType) {
	case gschema.Int:
		v, err = strconv.ParseInt(raw, 10, 64)
	case gschema.Uint:
		v, err = strconv.ParseUint(raw, 10, 64)
	case gschema.Float:
		v, err = strconv.ParseFloat(raw, 64)
	case gschema.Bool:
		v, err = strconv.ParseBool(raw)
	case gschema.Time:
		v, err = parseTime(raw)
	default:
		v = raw
	}
	if err != nil {
		return nil, apperr.BadRequest("Invalid value for %s: %s", f.Column, raw)
	}
	return v, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, raw)
}
