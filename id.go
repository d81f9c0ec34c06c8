package mongomap

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ID is the 12-byte primary-key value of every stored record, wire-compatible
// with MongoDB's native ObjectID. The zero value means "unset": a record whose
// ID is zero has never been persisted.
//
// IDs are stored under the reserved wire name "_id" and exposed in code as the
// ID field of Base.
type ID bson.ObjectID

// NewID generates a fresh identifier. ObjectIDs are time-prefixed, so freshly
// generated IDs sort roughly by creation time.
func NewID() ID {
	return ID(bson.NewObjectID())
}

// ParseID parses a 24-character hex string into an ID. Anything else fails
// with ErrInvalidID.
func ParseID(s string) (ID, error) {
	oid, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return ID{}, ErrInvalidID.WithCtx(map[string]any{"value": s})
	}
	return ID(oid), nil
}

// IsValidID checks if a string is a parseable identifier.
func IsValidID(s string) bool {
	_, err := bson.ObjectIDFromHex(s)
	return err == nil
}

// IsZero reports whether the ID is unset. It also satisfies the bson Zeroer
// contract so omitempty works on ID fields.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Hex returns the 24-character hex form used in every text representation.
func (id ID) Hex() string {
	return bson.ObjectID(id).Hex()
}

func (id ID) String() string {
	return id.Hex()
}

// ObjectID converts to the driver's native identifier type.
func (id ID) ObjectID() bson.ObjectID {
	return bson.ObjectID(id)
}

// MarshalJSON emits the hex string, matching API-facing representations.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.Hex() + `"`), nil
}

// UnmarshalJSON accepts the hex string form.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return ErrInvalidID.WithCtx(map[string]any{"value": string(data)})
	}
	parsed, err := ParseID(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalBSONValue encodes as a native ObjectID so IDs embedded in
// caller-supplied filter documents match stored primary keys.
func (id ID) MarshalBSONValue() (byte, []byte, error) {
	return byte(bson.TypeObjectID), id[:], nil
}

// UnmarshalBSONValue accepts the native ObjectID encoding.
func (id *ID) UnmarshalBSONValue(t byte, data []byte) error {
	if t != byte(bson.TypeObjectID) || len(data) != 12 {
		return ErrInvalidID.WithCtx(map[string]any{"bson_type": t})
	}
	copy(id[:], data)
	return nil
}
