package mongomap

// Document is implemented by every mapped record type, by embedding Base:
//
//	type User struct {
//	    mongomap.Base `bson:",inline"`
//	    Name string `bson:"name" mongomap:"required"`
//	    Age  int    `bson:"age"`
//	}
//
// Embedded records (nested values with no collection or identifier of their
// own) are plain structs and do not embed Base.
type Document interface {
	GetID() ID
	SetID(ID)
	touched() *fieldSet
}

// Base carries the identifier and the explicitly-set field bookkeeping for a
// record. The ID is stored on the wire under the reserved name "_id"; a zero
// ID means the record has never been persisted.
//
// Wire serialization includes only fields the caller explicitly set. A field
// counts as set when it was decoded from a stored document, named in a
// MarkSet call, or (for records built as plain struct literals that were
// never marked) holds a non-zero value. To persist an explicit zero value,
// mark the complete intended field set with MarkSet.
type Base struct {
	ID ID `bson:"_id,omitempty" json:"id"`

	set fieldSet
}

func (b *Base) GetID() ID    { return b.ID }
func (b *Base) SetID(id ID)  { b.ID = id }
func (b *Base) touched() *fieldSet { return &b.set }

// MarkSet records that the named wire fields were explicitly set by the
// caller, so they are included in the next write even when zero.
func (b *Base) MarkSet(wireNames ...string) {
	for _, name := range wireNames {
		b.set.add(name)
	}
}

// TouchedFields returns the wire names currently considered explicitly set.
func (b *Base) TouchedFields() []string {
	return b.set.names()
}

// IsSet reports whether the named wire field is considered explicitly set.
func (b *Base) IsSet(wireName string) bool {
	return b.set.has(wireName)
}

// fieldSet tracks which wire fields of a record instance were explicitly set.
// Not safe for concurrent mutation; record instances are single-caller values.
type fieldSet struct {
	m map[string]struct{}
}

func (s *fieldSet) add(name string) {
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	s.m[name] = struct{}{}
}

func (s *fieldSet) has(name string) bool {
	_, ok := s.m[name]
	return ok
}

func (s *fieldSet) empty() bool {
	return len(s.m) == 0
}

func (s *fieldSet) names() []string {
	if len(s.m) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.m))
	for name := range s.m {
		out = append(out, name)
	}
	return out
}
