package schema_test

import (
	"testing"

	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type Author struct {
	models.Base
	Name string `gorm:"not null"`
}

type Article struct {
	models.Base
	models.Owned
	Title    string `gorm:"not null"`
	Secret   string `vanilla:"private"`
	Code     string `vanilla:"immutable;unique"`
	Body     string `vanilla:"html"`
	Rank     int    `gorm:"not null;default:0"`
	AuthorID *uint
	Author   *Author `vanilla:"unprotected"`
	EditorID *uint
	Editor   *Author
	Remarks  []Remark
}

type Remark struct {
	models.Base
	models.TenantOwned
	ArticleID uint
	Text      string
}

type Profile struct {
	ID    uint              `gorm:"primaryKey"`
	Extra datatypes.JSONMap `vanilla:"extension"`
}

func TestDescriptor(t *testing.T) {
	reg := schema.NewRegistry(nil)
	d, err := reg.Of(&Article{})
	require.NoError(t, err)

	t.Run("Success - Kind and tenancy", func(t *testing.T) {
		assert.Equal(t, "articles", d.Kind)
		assert.Equal(t, schema.Owned, d.Tenancy)
		assert.True(t, d.SoftDelete)
		assert.Equal(t, "id", d.PrimaryKey.Column)

		remarks, err := reg.Of(&Remark{})
		require.NoError(t, err)
		assert.Equal(t, schema.MultiTenant, remarks.Tenancy)

		authors, err := reg.Of(&Author{})
		require.NoError(t, err)
		assert.Equal(t, schema.Unowned, authors.Tenancy)
	})

	t.Run("Success - Field metadata from tags", func(t *testing.T) {
		title, ok := d.Field("title")
		require.True(t, ok)
		assert.Equal(t, schema.DefaultMeta(), title.Meta)
		assert.True(t, title.Required())

		secret, _ := d.Field("secret")
		assert.True(t, secret.Meta.Private)
		assert.False(t, secret.Meta.Writable(false))

		code, _ := d.Field("code")
		assert.False(t, code.Meta.Mutable)
		assert.True(t, code.Meta.Unique)
		assert.True(t, code.Meta.Writable(false))
		assert.False(t, code.Meta.Writable(true))

		body, _ := d.Field("body")
		assert.True(t, body.Meta.HTML)

		userID, _ := d.Field("user_id")
		assert.True(t, userID.Meta.Protected)

		deleted, _ := d.Field("deleted")
		assert.True(t, deleted.Meta.Protected)
		assert.False(t, deleted.Required())

		rank, _ := d.Field("rank")
		assert.False(t, rank.Required())
	})

	t.Run("Success - Relations", func(t *testing.T) {
		author, ok := d.Relation("author")
		require.True(t, ok)
		assert.Equal(t, schema.BelongsTo, author.Kind)
		assert.False(t, author.Protected)
		assert.Equal(t, "author_id", author.ForeignKey)

		editor, _ := d.Relation("editor")
		assert.True(t, editor.Protected)

		remarks, ok := d.Relation("remarks")
		require.True(t, ok)
		assert.True(t, remarks.Collection())

		target, err := d.Target(remarks)
		require.NoError(t, err)
		assert.Equal(t, "remarks", target.Kind)

		_, ok = d.Relation("nothing")
		assert.False(t, ok)
	})

	t.Run("Success - Public columns skip private", func(t *testing.T) {
		assert.Contains(t, d.Columns(), "title")
		assert.NotContains(t, d.Columns(), "secret")
	})

	t.Run("Success - Lookup by kind", func(t *testing.T) {
		byKind, ok := reg.ByKind("articles")
		require.True(t, ok)
		assert.Same(t, d, byKind)
	})
}

func TestClonePropagatesMetadata(t *testing.T) {
	reg := schema.NewRegistry(nil)
	d := reg.MustOf(&Article{})

	c := d.Clone()
	for _, f := range d.Fields {
		cf, ok := c.Field(f.Column)
		require.True(t, ok)
		assert.NotSame(t, f, cf)
		assert.Equal(t, f.Meta, cf.Meta, f.Column)
	}
	for _, r := range d.Relations {
		cr, ok := c.Relation(r.Name)
		require.True(t, ok)
		assert.Equal(t, r.Protected, cr.Protected)
	}

	secret, _ := c.Field("secret")
	secret.Meta.Private = false
	original, _ := d.Field("secret")
	assert.True(t, original.Meta.Private)
}

func TestPersisted(t *testing.T) {
	reg := schema.NewRegistry(nil)
	d := reg.MustOf(&Article{})

	a := &Article{}
	assert.False(t, d.Persisted(t.Context(), a))
	a.ID = 4
	assert.True(t, d.Persisted(t.Context(), a))
	assert.Equal(t, uint(4), d.ID(t.Context(), a))
}

func TestExtension(t *testing.T) {
	t.Run("Success - Extend before and after build", func(t *testing.T) {
		reg := schema.NewRegistry(nil)
		before := reg.MustOf(&Profile{})
		assert.Empty(t, before.Extras)

		err := reg.Extend(&Profile{}, schema.Extension{Fields: []schema.ExtensionField{
			{Name: "nickname", Kind: schema.ExtString, Meta: schema.DefaultMeta()},
			{Name: "score", Kind: schema.ExtNumber, Meta: schema.FieldMeta{Protected: true, Mutable: true}},
		}})
		require.NoError(t, err)

		d := reg.MustOf(&Profile{})
		nick, ok := d.Extra("nickname")
		require.True(t, ok)
		assert.True(t, nick.Accepts("ann"))
		assert.False(t, nick.Accepts(3.0))
		assert.True(t, d.Extension.Meta.Private)
		assert.NotContains(t, d.Columns(), "extra")
	})

	t.Run("Error - Clash with column", func(t *testing.T) {
		reg := schema.NewRegistry(nil)
		err := reg.Extend(&Profile{}, schema.Extension{Fields: []schema.ExtensionField{{Name: "id"}}})
		assert.Error(t, err)
	})

	t.Run("Error - No extension column", func(t *testing.T) {
		reg := schema.NewRegistry(nil)
		err := reg.Extend(&Author{}, schema.Extension{Fields: []schema.ExtensionField{{Name: "bio"}}})
		assert.Error(t, err)
	})
}

func TestParseExtension(t *testing.T) {
	t.Run("Success - Kinds and defaults", func(t *testing.T) {
		ext, err := schema.ParseExtension(" phone:string, vip:bool ,notes")
		require.NoError(t, err)
		require.Len(t, ext.Fields, 3)
		assert.Equal(t, "phone", ext.Fields[0].Name)
		assert.Equal(t, schema.ExtString, ext.Fields[0].Kind)
		assert.Equal(t, schema.ExtBool, ext.Fields[1].Kind)
		assert.Equal(t, schema.ExtAny, ext.Fields[2].Kind)
		assert.True(t, ext.Fields[2].Meta.Public())
	})

	t.Run("Success - Empty list", func(t *testing.T) {
		ext, err := schema.ParseExtension("")
		require.NoError(t, err)
		assert.Empty(t, ext.Fields)
	})

	t.Run("Error - Unknown kind", func(t *testing.T) {
		_, err := schema.ParseExtension("age:int")
		assert.Error(t, err)
	})

	t.Run("Error - Missing name", func(t *testing.T) {
		_, err := schema.ParseExtension(":string")
		assert.Error(t, err)
	})
}
