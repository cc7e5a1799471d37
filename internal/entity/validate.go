package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/Kyz7/vanilla/internal/schema"
)

// ValidateOnCreate checks that every required column was supplied, then runs
// Validate. A column counts as supplied when data holds a non-null value for
// it, zero values included, or when something other than the input set it.
// Missing columns are reported together.
func (m *Manager) ValidateOnCreate(ctx context.Context, obj any, data map[string]any) error {
	d, err := m.Describe(obj)
	if err != nil {
		return err
	}
	rv := d.Value(obj)

	errs := apperr.FieldErrors{}
	for _, f := range d.Fields {
		if f == d.Extension || !f.Required() {
			continue
		}
		if data[f.Column] != nil && f.Meta.Writable(false) {
			continue
		}
		if _, zero := f.Value(ctx, rv); zero {
			errs.Add(f.Column, "Should be specified")
		}
	}
	ext := extensionOf(ctx, d, rv)
	for _, e := range d.Extras {
		if e.Required && ext[e.Name] == nil {
			errs.Add(e.Name, "Should be specified")
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}
	return m.Validate(ctx, obj)
}

// Validate runs on create and update: access level, relationship integrity
// and the model's own rules, stopping at the first failing stage.
func (m *Manager) Validate(ctx context.Context, obj any) error {
	d, err := m.Describe(obj)
	if err != nil {
		return err
	}
	if o, ok := obj.(models.Ownable); ok && !models.ValidAccess(o.AccessLevel()) {
		return apperr.Validation("access", "Invalid access level")
	}
	if err := m.verifyRelationships(ctx, d, obj); err != nil {
		return err
	}
	if v, ok := obj.(Validator); ok {
		return apperr.FieldErrors(v.Validate(ctx)).Err()
	}
	return nil
}

// verifyRelationships requires every protected many-to-one reference to point
// at a row the actor can see and write. Either failure is a validation error
// on the foreign key.
func (m *Manager) verifyRelationships(ctx context.Context, d *schema.Descriptor, obj any) error {
	rv := d.Value(obj)
	for _, r := range d.Relations {
		if r.Kind != schema.BelongsTo || !r.Protected || r.ForeignKey == "" {
			continue
		}
		fk, ok := d.Field(r.ForeignKey)
		if !ok {
			continue
		}
		id, zero := fk.Value(ctx, rv)
		if zero {
			continue
		}

		target, err := d.Target(r)
		if err != nil {
			return err
		}
		missing := apperr.Validation(fk.Column, fmt.Sprintf("%v : object with such id not found", deref(id)))
		ref := target.New()
		err = m.Query(ctx, target).WithAccessCheck().Get(ref, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return missing
		}
		if err != nil {
			return err
		}
		// an unwritable target reads the same as a missing one
		if !m.policy.Check(ctx, target, ref, models.PermWrite) {
			return missing
		}
	}
	return nil
}
