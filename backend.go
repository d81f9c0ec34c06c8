package mongomap

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FindOptions carries the optional query modifiers accepted by the find-shaped
// operations. The zero value means "no projection, no sort, no paging".
type FindOptions struct {
	// Projection limits the returned fields, e.g. bson.M{"name": 1}.
	Projection any
	// Sort is a sort specification, e.g. bson.D{{Key: "age", Value: -1}}.
	Sort any
	// Skip and Limit page through results. Limit applies to multi-document
	// finds only.
	Skip  int64
	Limit int64
}

// ReplaceOptions modifies ReplaceOne and FindOneAndReplace.
type ReplaceOptions struct {
	Upsert bool
}

// UpdateOptions modifies UpdateOne, UpdateMany and FindOneAndUpdate.
type UpdateOptions struct {
	Upsert bool
}

// RawCollection is the collection-level contract the mapping engine requires
// from the document store. It mirrors the official driver's method set with
// options flattened into plain structs, and materializes cursors into
// in-memory slices of raw wire documents.
//
// Single-document reads return (nil, nil) when no document matches; the typed
// layer above decides whether that is an absent optional result or a
// query.no_data error. Store-native result summaries pass through unmodified.
//
// Implementations: the adapter produced by ClientConnection, and
// MemoryCollection for development and tests.
type RawCollection interface {
	InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error)

	ReplaceOne(ctx context.Context, filter, replacement any, opts ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter, update any, opts UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update any, opts UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error)

	Find(ctx context.Context, filter any, opts FindOptions) ([]bson.Raw, error)
	FindOne(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error)
	FindOneAndDelete(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error)
	FindOneAndReplace(ctx context.Context, filter, replacement any, opts FindOptions, upsert bool) (bson.Raw, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, opts FindOptions, upsert bool) (bson.Raw, error)

	CountDocuments(ctx context.Context, filter any) (int64, error)
	EstimatedDocumentCount(ctx context.Context) (int64, error)
	Distinct(ctx context.Context, field string, filter any) ([]any, error)

	CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error)
}

// mongoCollection adapts a live *mongo.Collection to RawCollection.
type mongoCollection struct {
	coll *mongo.Collection
}

func newMongoCollection(coll *mongo.Collection) *mongoCollection {
	return &mongoCollection{coll: coll}
}

// orEmpty substitutes the empty filter for nil, since the driver rejects nil
// filter documents.
func orEmpty(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func (m *mongoCollection) InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	return m.coll.InsertOne(ctx, document)
}

func (m *mongoCollection) InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error) {
	return m.coll.InsertMany(ctx, documents)
}

func (m *mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any, opts ReplaceOptions) (*mongo.UpdateResult, error) {
	return m.coll.ReplaceOne(ctx, orEmpty(filter), replacement, options.Replace().SetUpsert(opts.Upsert))
}

func (m *mongoCollection) UpdateOne(ctx context.Context, filter, update any, opts UpdateOptions) (*mongo.UpdateResult, error) {
	return m.coll.UpdateOne(ctx, orEmpty(filter), update, options.UpdateOne().SetUpsert(opts.Upsert))
}

func (m *mongoCollection) UpdateMany(ctx context.Context, filter, update any, opts UpdateOptions) (*mongo.UpdateResult, error) {
	return m.coll.UpdateMany(ctx, orEmpty(filter), update, options.UpdateMany().SetUpsert(opts.Upsert))
}

func (m *mongoCollection) DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	return m.coll.DeleteOne(ctx, orEmpty(filter))
}

func (m *mongoCollection) DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	return m.coll.DeleteMany(ctx, orEmpty(filter))
}

func (m *mongoCollection) Find(ctx context.Context, filter any, opts FindOptions) ([]bson.Raw, error) {
	findOpts := options.Find()
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := m.coll.Find(ctx, orEmpty(filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.Raw
	for cursor.Next(ctx) {
		// cursor.Current is reused between iterations
		docs = append(docs, append(bson.Raw{}, cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *mongoCollection) FindOne(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error) {
	findOpts := options.FindOne()
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	return singleRaw(m.coll.FindOne(ctx, orEmpty(filter), findOpts))
}

func (m *mongoCollection) FindOneAndDelete(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error) {
	deleteOpts := options.FindOneAndDelete()
	if opts.Projection != nil {
		deleteOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		deleteOpts.SetSort(opts.Sort)
	}
	return singleRaw(m.coll.FindOneAndDelete(ctx, orEmpty(filter), deleteOpts))
}

func (m *mongoCollection) FindOneAndReplace(ctx context.Context, filter, replacement any, opts FindOptions, upsert bool) (bson.Raw, error) {
	replaceOpts := options.FindOneAndReplace().SetUpsert(upsert)
	if opts.Projection != nil {
		replaceOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		replaceOpts.SetSort(opts.Sort)
	}
	return singleRaw(m.coll.FindOneAndReplace(ctx, orEmpty(filter), replacement, replaceOpts))
}

func (m *mongoCollection) FindOneAndUpdate(ctx context.Context, filter, update any, opts FindOptions, upsert bool) (bson.Raw, error) {
	updateOpts := options.FindOneAndUpdate().SetUpsert(upsert)
	if opts.Projection != nil {
		updateOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		updateOpts.SetSort(opts.Sort)
	}
	return singleRaw(m.coll.FindOneAndUpdate(ctx, orEmpty(filter), update, updateOpts))
}

// singleRaw maps the driver's no-document sentinel to the absent result shape.
func singleRaw(res *mongo.SingleResult) (bson.Raw, error) {
	raw, err := res.Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (m *mongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	return m.coll.CountDocuments(ctx, orEmpty(filter))
}

func (m *mongoCollection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	return m.coll.EstimatedDocumentCount(ctx)
}

func (m *mongoCollection) Distinct(ctx context.Context, field string, filter any) ([]any, error) {
	var values []any
	if err := m.coll.Distinct(ctx, field, orEmpty(filter)).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func (m *mongoCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	return m.coll.Indexes().CreateMany(ctx, models)
}
