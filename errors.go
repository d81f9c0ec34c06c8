package mongomap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Error is a typed failure condition raised by the mapping layer. Every error
// carries a machine-stable dotted code, a message template and the named
// context values used to render it. Two errors are equivalent when their codes
// match, so callers discriminate with errors.Is against the exported
// prototypes below.
type Error struct {
	Code     string         `json:"code"`
	Ctx      map[string]any `json:"ctx,omitempty"`
	template string
}

// Configuration errors: raised exactly once, at type registration time.
var (
	ErrMetaMissing         = &Error{Code: "meta.missing", template: "record type declares no meta"}
	ErrConnectionMissing   = &Error{Code: "connection.missing", template: "connection is missing"}
	ErrConnectionIncorrect = &Error{Code: "connection.incorrect", template: "connection is incorrect"}
	ErrConnectionUndefined = &Error{Code: "connection.undefined", template: "connection is the undefined placeholder"}
	ErrCollectionIncorrect = &Error{Code: "collection.incorrect", template: "collection name is incorrect or missing"}
	ErrSchemaInvalid       = &Error{Code: "schema.invalid", template: "record schema is invalid: {reason}"}
	ErrNoIndexes           = &Error{Code: "index.missing", template: "no indexes declared for collection {collection}"}
)

// Argument and data errors: raised at call time.
var (
	ErrNoData           = &Error{Code: "query.no_data", template: "required query response is empty"}
	ErrIDEmpty          = &Error{Code: "model.id_empty", template: "id is empty"}
	ErrDereferenceValue = &Error{Code: "model.dereference", template: "wrong type of dereference value"}
	ErrInvalidDocument  = &Error{Code: "document.invalid", template: "document is invalid: {reason}"}
	ErrInvalidID        = &Error{Code: "id.invalid", template: "invalid objectid"}
)

var prototypes = map[string]*Error{}

func init() {
	for _, e := range []*Error{
		ErrMetaMissing, ErrConnectionMissing, ErrConnectionIncorrect,
		ErrConnectionUndefined, ErrCollectionIncorrect, ErrSchemaInvalid,
		ErrNoIndexes, ErrNoData, ErrIDEmpty, ErrDereferenceValue,
		ErrInvalidDocument, ErrInvalidID,
	} {
		prototypes[e.Code] = e
	}
}

// Error renders the message template, substituting {name} placeholders from
// the context map. Context values without a placeholder are appended so no
// detail is lost in logs.
func (e *Error) Error() string {
	msg := e.template
	used := map[string]bool{}
	for name, value := range e.Ctx {
		placeholder := "{" + name + "}"
		if strings.Contains(msg, placeholder) {
			msg = strings.ReplaceAll(msg, placeholder, fmt.Sprintf("%v", value))
			used[name] = true
		}
	}
	var extra []string
	for name, value := range e.Ctx {
		if !used[name] {
			extra = append(extra, fmt.Sprintf("%s=%v", name, value))
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		msg += " (" + strings.Join(extra, " ") + ")"
	}
	return msg
}

// Is reports code equality, so errors.Is(err, ErrNoData) matches any ErrNoData
// regardless of the context it was constructed with.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithCtx returns a copy of the error carrying the given context values.
// Prototypes are never mutated.
func (e *Error) WithCtx(ctx map[string]any) *Error {
	return &Error{Code: e.Code, Ctx: ctx, template: e.template}
}

// ReconstructError rebuilds an Error from its code and context, e.g. after the
// code+context pair crossed a process boundary as JSON. Unknown codes yield an
// error whose message is the code itself.
func ReconstructError(code string, ctx map[string]any) *Error {
	if proto, ok := prototypes[code]; ok {
		return proto.WithCtx(ctx)
	}
	return &Error{Code: code, Ctx: ctx, template: code}
}

// UnmarshalJSON restores the message template from the code registry.
func (e *Error) UnmarshalJSON(data []byte) error {
	var wire struct {
		Code string         `json:"code"`
		Ctx  map[string]any `json:"ctx"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = *ReconstructError(wire.Code, wire.Ctx)
	return nil
}

// CodeOf returns the dotted code of a mongomap error, or "" for any other
// error (including driver errors, which pass through this layer untyped).
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsNoData checks if an error is the empty-required-result error.
func IsNoData(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == ErrNoData.Code
}

// IsConfigError checks if an error is one of the registration-time
// configuration errors.
func IsConfigError(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Code {
	case ErrMetaMissing.Code, ErrConnectionMissing.Code, ErrConnectionIncorrect.Code,
		ErrConnectionUndefined.Code, ErrCollectionIncorrect.Code, ErrSchemaInvalid.Code,
		ErrNoIndexes.Code:
		return true
	}
	return false
}
