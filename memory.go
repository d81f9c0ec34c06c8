package mongomap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MemoryConnection is an in-memory Connection for development and tests: the
// full engine runs against it without a MongoDB deployment, the way a
// filesystem backend substitutes for object storage during development.
//
// The filter subset it understands is documented on MemoryCollection.
type MemoryConnection struct {
	databaseName string

	mu    sync.Mutex
	colls map[string]*MemoryCollection
}

func NewMemoryConnection(databaseName string) *MemoryConnection {
	return &MemoryConnection{
		databaseName: databaseName,
		colls:        make(map[string]*MemoryCollection),
	}
}

func (c *MemoryConnection) DatabaseName() string { return c.databaseName }

func (c *MemoryConnection) Collection(name string) (RawCollection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	coll, ok := c.colls[name]
	if !ok {
		coll = NewMemoryCollection(name)
		c.colls[name] = coll
	}
	return coll, nil
}

// MemoryCollection implements RawCollection over an in-memory document list.
//
// Supported filters: nil/empty (match all), top-level field equality, and
// {"field": {"$in": [...]}}. Supported update operator: "$set". Sort specs
// are bson.D documents with 1/-1 directions. Projections are inclusive
// ({"field": 1}), with "_id" kept unless excluded explicitly. Anything
// outside this subset returns an error rather than guessing.
type MemoryCollection struct {
	name string

	mu      sync.RWMutex
	docs    []bson.M
	indexes []string
}

func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{name: name}
}

// canonical round-trips a document through BSON so stored and queried values
// compare with the same types the real store would produce.
func canonical(v any) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return normalize(m).(bson.M), nil
}

// normalize rewrites nested bson.D values as bson.M, which is what the filter
// matcher works in. The decoder produces bson.D for embedded documents.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(bson.M, len(t))
		for _, el := range t {
			m[el.Key] = normalize(el.Value)
		}
		return m
	case bson.M:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case bson.A:
		for i, el := range t {
			t[i] = normalize(el)
		}
		return t
	}
	return v
}

func canonicalFilter(filter any) (bson.M, error) {
	if filter == nil {
		return bson.M{}, nil
	}
	return canonical(filter)
}

func equalValues(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok || bok {
		// A numeric value never equals a non-numeric one, so a string
		// filter like "30" does not match a stored int32(30).
		return aok && bok && af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func matches(doc, filter bson.M) (bool, error) {
	for key, want := range filter {
		got, present := doc[key]
		if cond, ok := want.(bson.M); ok {
			in, hasIn := cond["$in"]
			if !hasIn || len(cond) != 1 {
				return false, fmt.Errorf("memory collection: unsupported filter condition %v", cond)
			}
			values, ok := in.(bson.A)
			if !ok {
				return false, fmt.Errorf("memory collection: $in requires an array")
			}
			found := false
			for _, candidate := range values {
				if present && equalValues(got, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
			continue
		}
		if !present || !equalValues(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func (c *MemoryCollection) matchingLocked(filter bson.M) ([]int, error) {
	var idx []int
	for i, doc := range c.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func (c *MemoryCollection) InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	doc, err := canonical(document)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.insertLocked(doc)
	return &mongo.InsertOneResult{InsertedID: id, Acknowledged: true}, nil
}

func (c *MemoryCollection) InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := &mongo.InsertManyResult{Acknowledged: true}
	for _, document := range documents {
		doc, err := canonical(document)
		if err != nil {
			return nil, err
		}
		res.InsertedIDs = append(res.InsertedIDs, c.insertLocked(doc))
	}
	return res, nil
}

func (c *MemoryCollection) insertLocked(doc bson.M) any {
	id, ok := doc["_id"]
	if !ok {
		id = bson.NewObjectID()
		doc["_id"] = id
	}
	c.docs = append(c.docs, doc)
	return id
}

func (c *MemoryCollection) ReplaceOne(ctx context.Context, filter, replacement any, opts ReplaceOptions) (*mongo.UpdateResult, error) {
	f, err := canonicalFilter(filter)
	if err != nil {
		return nil, err
	}
	repl, err := canonical(replacement)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.matchingLocked(f)
	if err != nil {
		return nil, err
	}
	res := &mongo.UpdateResult{Acknowledged: true}
	if len(idx) == 0 {
		if opts.Upsert {
			upserted := mergeForUpsert(f, repl)
			res.UpsertedID = c.insertLocked(upserted)
			res.UpsertedCount = 1
		}
		return res, nil
	}

	i := idx[0]
	if _, has := repl["_id"]; !has {
		repl["_id"] = c.docs[i]["_id"]
	}
	c.docs[i] = repl
	res.MatchedCount = 1
	res.ModifiedCount = 1
	return res, nil
}

func (c *MemoryCollection) UpdateOne(ctx context.Context, filter, update any, opts UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update(filter, update, opts, true)
}

func (c *MemoryCollection) UpdateMany(ctx context.Context, filter, update any, opts UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update(filter, update, opts, false)
}

func (c *MemoryCollection) update(filter, update any, opts UpdateOptions, single bool) (*mongo.UpdateResult, error) {
	f, err := canonicalFilter(filter)
	if err != nil {
		return nil, err
	}
	set, err := setDocument(update)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.matchingLocked(f)
	if err != nil {
		return nil, err
	}
	res := &mongo.UpdateResult{Acknowledged: true}
	if len(idx) == 0 {
		if opts.Upsert {
			res.UpsertedID = c.insertLocked(mergeForUpsert(f, set))
			res.UpsertedCount = 1
		}
		return res, nil
	}
	if single {
		idx = idx[:1]
	}
	for _, i := range idx {
		for k, v := range set {
			c.docs[i][k] = v
		}
	}
	res.MatchedCount = int64(len(idx))
	res.ModifiedCount = int64(len(idx))
	return res, nil
}

// setDocument extracts and validates a {"$set": {...}} update document.
func setDocument(update any) (bson.M, error) {
	u, err := canonical(update)
	if err != nil {
		return nil, err
	}
	for op := range u {
		if op != "$set" {
			return nil, fmt.Errorf("memory collection: unsupported update operator %s", op)
		}
	}
	set, ok := u["$set"].(bson.M)
	if !ok {
		return nil, fmt.Errorf("memory collection: $set requires a document")
	}
	return set, nil
}

// mergeForUpsert builds the upserted document from the filter's equality
// clauses plus the replacement/update fields, the way the real store does.
func mergeForUpsert(filter, fields bson.M) bson.M {
	doc := bson.M{}
	for k, v := range filter {
		if _, isCond := v.(bson.M); !isCond {
			doc[k] = v
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	return doc
}

func (c *MemoryCollection) DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	return c.delete(filter, true)
}

func (c *MemoryCollection) DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	return c.delete(filter, false)
}

func (c *MemoryCollection) delete(filter any, single bool) (*mongo.DeleteResult, error) {
	f, err := canonicalFilter(filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.matchingLocked(f)
	if err != nil {
		return nil, err
	}
	if single && len(idx) > 1 {
		idx = idx[:1]
	}
	kept := c.docs[:0]
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	for i, doc := range c.docs {
		if !drop[i] {
			kept = append(kept, doc)
		}
	}
	c.docs = kept
	return &mongo.DeleteResult{DeletedCount: int64(len(idx)), Acknowledged: true}, nil
}

func (c *MemoryCollection) Find(ctx context.Context, filter any, opts FindOptions) ([]bson.Raw, error) {
	f, err := canonicalFilter(filter)
	if err != nil {
		return nil, err
	}
	// Hold the read lock through marshaling: the selected entries alias the
	// shared documents that writers mutate in place.
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, err := c.matchingLocked(f)
	if err != nil {
		return nil, err
	}
	selected := make([]bson.M, len(idx))
	for i, j := range idx {
		selected[i] = c.docs[j]
	}

	if opts.Sort != nil {
		if err := sortDocs(selected, opts.Sort); err != nil {
			return nil, err
		}
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(selected)) {
			selected = nil
		} else {
			selected = selected[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(selected)) > opts.Limit {
		selected = selected[:opts.Limit]
	}

	raws := make([]bson.Raw, 0, len(selected))
	for _, doc := range selected {
		raw, err := bson.Marshal(project(doc, opts.Projection))
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func (c *MemoryCollection) FindOne(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error) {
	one := opts
	one.Limit = 1
	raws, err := c.Find(ctx, filter, one)
	if err != nil || len(raws) == 0 {
		return nil, err
	}
	return raws[0], nil
}

func (c *MemoryCollection) FindOneAndDelete(ctx context.Context, filter any, opts FindOptions) (bson.Raw, error) {
	raw, err := c.FindOne(ctx, filter, opts)
	if err != nil || raw == nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if _, err := c.DeleteOne(ctx, bson.M{"_id": doc["_id"]}); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *MemoryCollection) FindOneAndReplace(ctx context.Context, filter, replacement any, opts FindOptions, upsert bool) (bson.Raw, error) {
	raw, err := c.FindOne(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if raw == nil && !upsert {
		return nil, nil
	}
	if _, err := c.ReplaceOne(ctx, filter, replacement, ReplaceOptions{Upsert: upsert}); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *MemoryCollection) FindOneAndUpdate(ctx context.Context, filter, update any, opts FindOptions, upsert bool) (bson.Raw, error) {
	raw, err := c.FindOne(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if raw == nil && !upsert {
		return nil, nil
	}
	if _, err := c.UpdateOne(ctx, filter, update, UpdateOptions{Upsert: upsert}); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *MemoryCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	f, err := canonicalFilter(filter)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, err := c.matchingLocked(f)
	if err != nil {
		return 0, err
	}
	return int64(len(idx)), nil
}

func (c *MemoryCollection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.docs)), nil
}

func (c *MemoryCollection) Distinct(ctx context.Context, field string, filter any) ([]any, error) {
	f, err := canonicalFilter(filter)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, err := c.matchingLocked(f)
	if err != nil {
		return nil, err
	}
	var values []any
	for _, i := range idx {
		v, present := c.docs[i][field]
		if !present {
			continue
		}
		unique := true
		for _, seen := range values {
			if equalValues(seen, v) {
				unique = false
				break
			}
		}
		if unique {
			values = append(values, v)
		}
	}
	return values, nil
}

func (c *MemoryCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(models))
	for _, model := range models {
		names = append(names, indexName(model))
	}
	c.indexes = append(c.indexes, names...)
	return names, nil
}

// IndexNames returns the names recorded by CreateIndexes calls.
func (c *MemoryCollection) IndexNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.indexes...)
}

func indexName(model mongo.IndexModel) string {
	keys, err := canonical(model.Keys)
	if err != nil || len(keys) == 0 {
		return "index"
	}
	parts := make([]string, 0, len(keys))
	for k, v := range keys {
		parts = append(parts, fmt.Sprintf("%s_%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, "_")
}

// sortDocs orders documents by a bson.D sort specification with 1/-1
// directions.
func sortDocs(docs []bson.M, spec any) error {
	ordered, err := canonicalSort(spec)
	if err != nil {
		return err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range ordered {
			cmp := compareValues(docs[i][key.name], docs[j][key.name])
			if cmp == 0 {
				continue
			}
			if key.descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

type sortKey struct {
	name       string
	descending bool
}

func canonicalSort(spec any) ([]sortKey, error) {
	d, ok := spec.(bson.D)
	if !ok {
		return nil, fmt.Errorf("memory collection: sort spec must be bson.D")
	}
	keys := make([]sortKey, 0, len(d))
	for _, el := range d {
		dir, ok := asFloat(el.Value)
		if !ok || (dir != 1 && dir != -1) {
			return nil, fmt.Errorf("memory collection: sort direction must be 1 or -1")
		}
		keys = append(keys, sortKey{name: el.Key, descending: dir == -1})
	}
	return keys, nil
}

func compareValues(a, b any) int {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

// project applies an inclusive projection document; nil means everything.
func project(doc bson.M, projection any) bson.M {
	if projection == nil {
		return doc
	}
	p, err := canonical(projection)
	if err != nil || len(p) == 0 {
		return doc
	}
	out := bson.M{}
	keepID := true
	for key, v := range p {
		include, _ := asFloat(v)
		if key == "_id" && include == 0 {
			keepID = false
			continue
		}
		if include != 0 {
			if value, present := doc[key]; present {
				out[key] = value
			}
		}
	}
	if keepID {
		if id, present := doc["_id"]; present {
			out["_id"] = id
		}
	}
	return out
}
