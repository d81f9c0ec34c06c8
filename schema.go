package mongomap

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// schema is the explicit field description of one registered record type:
// per field its Go name, wire name, required flag and optional default. Built
// once by reflection at registration time; the engine consults it on every
// serialize and decode.
type schema struct {
	typ    reflect.Type // the record struct type
	fields []fieldSpec
	byWire map[string]int
}

type fieldSpec struct {
	name       string // Go field name
	wire       string // bson wire name
	index      int    // struct field index
	required   bool
	hasDefault bool
	defValue   reflect.Value
}

const optionTag = "mongomap"

// buildSchema describes the struct type of a record. The embedded Base is
// skipped (the identifier is handled separately), unexported fields are
// ignored, and field options come from tags:
//
//	bson:"name"                 wire name (defaults to the lowercased Go name)
//	mongomap:"required"         field must be present on read and write
//	mongomap:"default=active"   value filled in when absent from a stored doc
func buildSchema(t reflect.Type) (*schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, ErrSchemaInvalid.WithCtx(map[string]any{
			"reason": "record type must be a struct",
			"type":   t.String(),
		})
	}

	s := &schema{typ: t, byWire: make(map[string]int)}
	embedsBase := false

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == reflect.TypeOf(Base{}) {
			embedsBase = true
			continue
		}
		if !f.IsExported() {
			continue
		}

		wire := wireName(f)
		if wire == "" {
			continue // bson:"-"
		}
		if wire == "_id" {
			return nil, ErrSchemaInvalid.WithCtx(map[string]any{
				"reason": "_id is reserved for the identifier",
				"field":  f.Name,
			})
		}
		if _, dup := s.byWire[wire]; dup {
			return nil, ErrSchemaInvalid.WithCtx(map[string]any{
				"reason": "duplicate wire name",
				"field":  f.Name,
				"wire":   wire,
			})
		}

		spec := fieldSpec{name: f.Name, wire: wire, index: i}
		for _, opt := range strings.Split(f.Tag.Get(optionTag), ",") {
			switch {
			case opt == "" || opt == "omitempty":
				// omitempty is bson's concern, not ours
			case opt == "required":
				spec.required = true
			case strings.HasPrefix(opt, "default="):
				def, err := parseDefault(f.Type, strings.TrimPrefix(opt, "default="))
				if err != nil {
					return nil, ErrSchemaInvalid.WithCtx(map[string]any{
						"reason": err.Error(),
						"field":  f.Name,
					})
				}
				spec.hasDefault = true
				spec.defValue = def
			default:
				return nil, ErrSchemaInvalid.WithCtx(map[string]any{
					"reason": "unknown field option " + opt,
					"field":  f.Name,
				})
			}
		}

		s.byWire[wire] = len(s.fields)
		s.fields = append(s.fields, spec)
	}

	if !embedsBase {
		return nil, ErrSchemaInvalid.WithCtx(map[string]any{
			"reason": "record type must embed mongomap.Base",
			"type":   t.String(),
		})
	}
	return s, nil
}

func wireName(f reflect.StructField) string {
	tag := f.Tag.Get("bson")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	name := strings.Split(tag, ",")[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

// parseDefault coerces a tag-supplied default literal to the field's type.
func parseDefault(t reflect.Type, literal string) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(literal)
	case reflect.Bool:
		b, err := strconv.ParseBool(literal)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad bool default %q", literal)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad int default %q", literal)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(literal, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad uint default %q", literal)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("bad float default %q", literal)
		}
		v.SetFloat(n)
	default:
		return reflect.Value{}, fmt.Errorf("defaults are not supported for %s fields", t.Kind())
	}
	return v, nil
}

// effectiveSet computes the wire names treated as explicitly set for one
// serialization: the instance's touched set when the caller marked or decoded
// anything, otherwise its current non-zero fields. The fallback is computed
// fresh on every call and never written back, so a plain literal mutated
// between saves serializes whatever is non-zero at save time.
func (s *schema) effectiveSet(doc Document) map[string]struct{} {
	out := make(map[string]struct{}, len(s.fields))
	set := doc.touched()
	if !set.empty() {
		for _, f := range s.fields {
			if set.has(f.wire) {
				out[f.wire] = struct{}{}
			}
		}
		return out
	}
	v := reflect.ValueOf(doc).Elem()
	for _, f := range s.fields {
		if !v.Field(f.index).IsZero() {
			out[f.wire] = struct{}{}
		}
	}
	return out
}

// toWire converts a record instance into its wire document: the identifier is
// always excluded, and so is every field outside the effective set, so
// partial documents never clobber fields they did not touch.
func (s *schema) toWire(doc Document) (bson.M, error) {
	v := reflect.ValueOf(doc).Elem()
	set := s.effectiveSet(doc)

	out := bson.M{}
	for _, f := range s.fields {
		if _, ok := set[f.wire]; ok {
			out[f.wire] = v.Field(f.index).Interface()
		}
	}
	return out, nil
}

// checkRequired verifies every required field is in the effective set.
// Called before full-document writes.
func (s *schema) checkRequired(doc Document) error {
	set := s.effectiveSet(doc)
	for _, f := range s.fields {
		if !f.required {
			continue
		}
		if _, ok := set[f.wire]; !ok {
			return ErrInvalidDocument.WithCtx(map[string]any{
				"reason": "required field is not set",
				"field":  f.wire,
			})
		}
	}
	return nil
}

// decode validates and coerces a raw wire document into the given record
// instance: present wire fields become the touched set, absent fields with a
// declared default are filled (but not marked set), and absent required
// fields fail with document.invalid.
func (s *schema) decode(raw bson.Raw, doc Document) error {
	if err := bson.Unmarshal(raw, doc); err != nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": err.Error()})
	}

	elements, err := raw.Elements()
	if err != nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": err.Error()})
	}
	present := make(map[string]bool, len(elements))
	for _, el := range elements {
		present[el.Key()] = true
	}

	if idVal := raw.Lookup("_id"); idVal.Type == bson.TypeObjectID {
		doc.SetID(ID(idVal.ObjectID()))
	}

	v := reflect.ValueOf(doc).Elem()
	set := doc.touched()
	for _, f := range s.fields {
		switch {
		case present[f.wire]:
			set.add(f.wire)
		case f.required:
			return ErrInvalidDocument.WithCtx(map[string]any{
				"reason": "required field is missing from stored document",
				"field":  f.wire,
			})
		case f.hasDefault:
			v.Field(f.index).Set(f.defValue)
		}
	}
	return nil
}

// copyFields copies every non-identifier field (and the touched set) from src
// onto dst. Used by Refresh.
func (s *schema) copyFields(dst, src Document) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for _, f := range s.fields {
		dv.Field(f.index).Set(sv.Field(f.index))
	}
	for _, wire := range src.touched().names() {
		dst.touched().add(wire)
	}
}

// wireNames returns the schema's wire names sorted alphabetically. Handy in
// diagnostics.
func (s *schema) wireNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.wire
	}
	sort.Strings(out)
	return out
}
