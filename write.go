package mongomap

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// InsertOne writes a new document and assigns the store-generated identifier
// back onto the instance.
func (c *Collection[T, P]) InsertOne(ctx context.Context, doc P) (err error) {
	start := time.Now()
	defer func() { c.observe("insert_one", start, err) }()

	if doc == nil {
		return ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil document"})
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
	res, err := raw.InsertOne(ctx, wire)
	if err != nil {
		return err
	}
	assignID(doc, res.InsertedID)
	return nil
}

// InsertMany writes a batch of documents and assigns the store-generated
// identifiers back positionally: the i-th returned identifier goes to the
// i-th input instance. Argument problems (nil elements, missing required
// fields) fail before any I/O.
func (c *Collection[T, P]) InsertMany(ctx context.Context, docs []P) (err error) {
	start := time.Now()
	defer func() { c.observe("insert_many", start, err) }()

	if len(docs) == 0 {
		return nil
	}
	wires := make([]any, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return ErrInvalidDocument.WithCtx(map[string]any{"reason": "nil document", "position": i})
		}
		if err = c.schema.checkRequired(doc); err != nil {
			return err
		}
		if wires[i], err = c.schema.toWire(doc); err != nil {
			return err
		}
	}

	raw, err := c.Raw()
	if err != nil {
		return err
	}
	res, err := raw.InsertMany(ctx, wires)
	if err != nil {
		return err
	}
	for i, inserted := range res.InsertedIDs {
		if i < len(docs) {
			assignID(docs[i], inserted)
		}
	}
	return nil
}

// assignID copies a store-returned identifier onto an instance. Non-ObjectID
// identifiers (callers writing custom _id values through raw documents) are
// left alone.
func assignID(doc Document, inserted any) {
	if oid, ok := inserted.(bson.ObjectID); ok {
		doc.SetID(ID(oid))
	}
}

// ReplaceOne replaces the first document matching filter with the wire form
// of replacement. The store's native result summary passes through
// unmodified.
func (c *Collection[T, P]) ReplaceOne(ctx context.Context, filter any, replacement P, opts ReplaceOptions) (res *mongo.UpdateResult, err error) {
	start := time.Now()
	defer func() { c.observe("replace_one", start, err) }()

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
	return raw.ReplaceOne(ctx, filter, wire, opts)
}

// UpdateOne applies an update document to the first match. Pass-through.
func (c *Collection[T, P]) UpdateOne(ctx context.Context, filter, update any, opts UpdateOptions) (res *mongo.UpdateResult, err error) {
	start := time.Now()
	defer func() { c.observe("update_one", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.UpdateOne(ctx, filter, update, opts)
}

// UpdateMany applies an update document to every match. Pass-through.
func (c *Collection[T, P]) UpdateMany(ctx context.Context, filter, update any, opts UpdateOptions) (res *mongo.UpdateResult, err error) {
	start := time.Now()
	defer func() { c.observe("update_many", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.UpdateMany(ctx, filter, update, opts)
}

// DeleteOne removes the first document matching filter. Pass-through.
func (c *Collection[T, P]) DeleteOne(ctx context.Context, filter any) (res *mongo.DeleteResult, err error) {
	start := time.Now()
	defer func() { c.observe("delete_one", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.DeleteOne(ctx, filter)
}

// DeleteMany removes every document matching filter. Pass-through.
func (c *Collection[T, P]) DeleteMany(ctx context.Context, filter any) (res *mongo.DeleteResult, err error) {
	start := time.Now()
	defer func() { c.observe("delete_many", start, err) }()

	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.DeleteMany(ctx, filter)
}

// CreateIndexes submits the Meta's declared index list to the store in one
// call. Registering indexes is part of the type's configuration, so asking
// for index creation without any declared is a configuration error.
func (c *Collection[T, P]) CreateIndexes(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { c.observe("create_indexes", start, err) }()

	if len(c.meta.Indexes) == 0 {
		return nil, ErrNoIndexes.WithCtx(map[string]any{"collection": c.name})
	}
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	return raw.CreateIndexes(ctx, c.meta.Indexes)
}
