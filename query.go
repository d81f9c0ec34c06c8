package mongomap

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Find returns every document matching filter as validated record instances.
// A nil filter matches everything.
func (c *Collection[T, P]) Find(ctx context.Context, filter any, opts FindOptions) (docs []P, err error) {
	start := time.Now()
	defer func() { c.observe("find", start, err) }()

	raws, err := c.findRaw(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return c.decodeMany(raws)
}

// FindRequired is Find, but an empty result set is an error instead of an
// empty slice.
func (c *Collection[T, P]) FindRequired(ctx context.Context, filter any, opts FindOptions) (docs []P, err error) {
	start := time.Now()
	defer func() { c.observe("find_required", start, err) }()

	raws, err := c.findRaw(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, ErrNoData.WithCtx(map[string]any{"collection": c.name})
	}
	return c.decodeMany(raws)
}

// FindRaw returns matching wire documents without record-type validation, for
// callers who want to bypass coercion entirely.
func (c *Collection[T, P]) FindRaw(ctx context.Context, filter any, opts FindOptions) (raws []bson.Raw, err error) {
	start := time.Now()
	defer func() { c.observe("find_raw", start, err) }()
	return c.findRaw(ctx, filter, opts)
}

func (c *Collection[T, P]) findRaw(ctx context.Context, filter any, opts FindOptions) ([]bson.Raw, error) {
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	raws, err := raw.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	c.metrics.Histogram(MetricQueryResults, float64(len(raws)), "op", "find", "collection", c.name)
	return raws, nil
}

// FindOne returns the first match as a validated instance, or nil when
// nothing matches.
func (c *Collection[T, P]) FindOne(ctx context.Context, filter any, opts FindOptions) (doc P, err error) {
	start := time.Now()
	defer func() { c.observe("find_one", start, err) }()

	raw, err := c.findOneRaw(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(raw)
}

// FindOneRequired is FindOne, but no match is an error instead of nil.
func (c *Collection[T, P]) FindOneRequired(ctx context.Context, filter any, opts FindOptions) (doc P, err error) {
	start := time.Now()
	defer func() { c.observe("find_one_required", start, err) }()

	raw, err := c.findOneRaw(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNoData.WithCtx(map[string]any{"collection": c.name})
	}
	return c.decodeOne(raw)
}

// FindOneRaw returns the first matching wire document undecoded, or nil when
// nothing matches.
func (c *Collection[T, P]) FindOneRaw(ctx context.Context, filter any, opts FindOptions) (raw bson.Raw, err error) {
	start := time.Now()
	defer func() { c.observe("find_one_raw", start, err) }()
	return c.findOneRaw(ctx, filter, opts)
}

func (c *Collection[T, P]) findOneRaw(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error) {
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.FindOne(ctx, filter, opts)
}

// FindOneAndDelete atomically removes the first match and returns it as a
// validated instance (nil when nothing matched).
func (c *Collection[T, P]) FindOneAndDelete(ctx context.Context, filter any, opts FindOptions) (doc P, err error) {
	start := time.Now()
	defer func() { c.observe("find_one_and_delete", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	res, err := raw.FindOneAndDelete(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

// FindOneAndReplace atomically replaces the first match and returns the
// pre-replacement document as a validated instance (nil when nothing matched
// and upsert is off).
func (c *Collection[T, P]) FindOneAndReplace(ctx context.Context, filter any, replacement P, opts FindOptions, replaceOpts ReplaceOptions) (doc P, err error) {
	start := time.Now()
	defer func() { c.observe("find_one_and_replace", start, err) }()

	if replacement == nil {
		return nil, ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil replacement"})
	}
	wire, err := c.schema.toWire(replacement)
	if err != nil {
		return nil, err
	}
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	res, err := raw.FindOneAndReplace(ctx, filter, wire, opts, replaceOpts.Upsert)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

// FindOneAndUpdate atomically applies an update to the first match and
// returns the pre-update document as a validated instance (nil when nothing
// matched and upsert is off).
func (c *Collection[T, P]) FindOneAndUpdate(ctx context.Context, filter, update any, opts FindOptions, updateOpts UpdateOptions) (doc P, err error) {
	start := time.Now()
	defer func() { c.observe("find_one_and_update", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	res, err := raw.FindOneAndUpdate(ctx, filter, update, opts, updateOpts.Upsert)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(res)
}

// CountDocuments counts matches for filter. Pass-through.
func (c *Collection[T, P]) CountDocuments(ctx context.Context, filter any) (n int64, err error) {
	start := time.Now()
	defer func() { c.observe("count_documents", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return 0, err
	}
	return raw.CountDocuments(ctx, filter)
}

// EstimatedDocumentCount returns the store's collection-size estimate.
// Pass-through.
func (c *Collection[T, P]) EstimatedDocumentCount(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { c.observe("estimated_document_count", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return 0, err
	}
	return raw.EstimatedDocumentCount(ctx)
}

// Distinct returns the distinct values of field across matching documents.
// Pass-through, untyped.
func (c *Collection[T, P]) Distinct(ctx context.Context, field string, filter any) (values []any, err error) {
	start := time.Now()
	defer func() { c.observe("distinct", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.Distinct(ctx, field, filter)
}

// Dereference resolves exactly one record by identifier. An unset identifier
// fails with model.dereference before any I/O; a valid identifier with no
// matching document fails with query.no_data.
func (c *Collection[T, P]) Dereference(ctx context.Context, id ID) (doc P, err error) {
	start := time.Now()
	defer func() { c.observe("dereference", start, err) }()

	if id.IsZero() {
		return nil, ErrDereferenceValue.WithCtx(map[string]any{"collection": c.name})
	}
	return c.FindOneRequired(ctx, c.idFilter(id), FindOptions{})
}

// DereferenceList resolves a set of identifiers in one "$in" query. A nil
// slice or an unset element fails with model.dereference before any I/O.
//
// When guaranteeOrder is true the result is reordered to match the input
// sequence (document stores do not guarantee result order for "in" filters);
// identifiers with no matching document are silently dropped either way.
func (c *Collection[T, P]) DereferenceList(ctx context.Context, ids []ID, guaranteeOrder bool) (docs []P, err error) {
	start := time.Now()
	defer func() { c.observe("dereference_list", start, err) }()

	if ids == nil {
		return nil, ErrDereferenceValue.WithCtx(map[string]any{"collection": c.name})
	}
	for i, id := range ids {
		if id.IsZero() {
			return nil, ErrDereferenceValue.WithCtx(map[string]any{
				"collection": c.name,
				"position":   i,
			})
		}
	}
	if len(ids) == 0 {
		return []P{}, nil
	}

	oids := make([]bson.ObjectID, len(ids))
	for i, id := range ids {
		oids[i] = id.ObjectID()
	}
	docs, err = c.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, FindOptions{})
	if err != nil {
		return nil, err
	}
	if !guaranteeOrder {
		return docs, nil
	}

	position := make(map[ID]int, len(ids))
	for i, id := range ids {
		if _, seen := position[id]; !seen {
			position[id] = i
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return position[docs[i].GetID()] < position[docs[j].GetID()]
	})
	return docs, nil
}

// DereferenceAll is DereferenceList with the order guarantee on, matching the
// common case.
func (c *Collection[T, P]) DereferenceAll(ctx context.Context, ids []ID) ([]P, error) {
	return c.DereferenceList(ctx, ids, true)
}
