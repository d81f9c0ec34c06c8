package mongomap

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Record lifecycle: an instance with an unset ID is unsaved; Save assigns the
// store-generated ID; Update and Refresh require a persisted instance; Delete
// clears the ID, leaving the in-memory fields intact.

// Save persists the instance: an unsaved instance is inserted (and gets its
// fresh identifier), a persisted one is replaced wholesale.
func (c *Collection[T, P]) Save(ctx context.Context, doc P) (err error) {
	start := time.Now()
	defer func() { c.observe("save", start, err) }()

	if doc == nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil document"})
	}
	if doc.GetID().IsZero() {
		return c.InsertOne(ctx, doc)
	}

	if err = c.schema.checkRequired(doc); err != nil {
		return err
	}
	wire, err := c.schema.toWire(doc)
	if err != nil {
		return err
	}
	raw, err := c.Raw()
	if err != nil {
		return err
	}
	_, err = raw.ReplaceOne(ctx, c.idFilter(doc.GetID()), wire, ReplaceOptions{})
	return err
}

// Update assigns the given wire-named field values onto the instance and
// issues a "$set" for exactly those fields. An unsaved instance fails with
// model.id_empty before any I/O; unknown field names fail the same way a bad
// document would.
func (c *Collection[T, P]) Update(ctx context.Context, doc P, fields bson.M) (err error) {
	start := time.Now()
	defer func() { c.observe("update", start, err) }()

	if doc == nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil document"})
	}
	if doc.GetID().IsZero() {
		return ErrIDEmpty
	}

	v := reflect.ValueOf(doc).Elem()
	for wire, value := range fields {
		idx, ok := c.schema.byWire[wire]
		if !ok {
			return ErrInvalidDocument.WithCtx(map[string]any{
				"reason": "unknown field",
				"field":  wire,
				"known":  c.schema.wireNames(),
			})
		}
		if err = setField(v.Field(c.schema.fields[idx].index), value); err != nil {
			return ErrInvalidDocument.WithCtx(map[string]any{
				"reason": err.Error(),
				"field":  wire,
			})
		}
		doc.touched().add(wire)
	}

	raw, err := c.Raw()
	if err != nil {
		return err
	}
	_, err = raw.UpdateOne(ctx, c.idFilter(doc.GetID()), bson.M{"$set": fields}, UpdateOptions{})
	return err
}

// Refresh reloads every non-identifier field from the store. An unsaved
// instance fails with model.id_empty; a persisted instance whose document is
// gone fails with query.no_data.
func (c *Collection[T, P]) Refresh(ctx context.Context, doc P) (err error) {
	start := time.Now()
	defer func() { c.observe("refresh", start, err) }()

	if doc == nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil document"})
	}
	if doc.GetID().IsZero() {
		return ErrIDEmpty
	}

	fresh, err := c.FindOneRequired(ctx, c.idFilter(doc.GetID()), FindOptions{})
	if err != nil {
		return err
	}
	c.schema.copyFields(doc, fresh)
	return nil
}

// Delete removes the instance's document and clears the in-memory identifier.
// The instance stays usable; it merely loses its persisted linkage and can
// be saved again as a new document.
func (c *Collection[T, P]) Delete(ctx context.Context, doc P) (err error) {
	start := time.Now()
	defer func() { c.observe("delete", start, err) }()

	if doc == nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil document"})
	}
	if doc.GetID().IsZero() {
		return ErrIDEmpty
	}

	raw, err := c.Raw()
	if err != nil {
		return err
	}
	if _, err = raw.DeleteOne(ctx, c.idFilter(doc.GetID())); err != nil {
		return err
	}
	doc.SetID(ID{})
	return nil
}

// setField assigns an untyped update value to a struct field, converting
// compatible kinds (a bare int for a float64 field, and so on).
func setField(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(field.Type()):
		field.Set(v)
	case isNumeric(v.Kind()) && isNumeric(field.Kind()):
		field.Set(v.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
