package mongomap

import (
	"context"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestMemoryCollectionFilters(t *testing.T) {
	coll := NewMemoryCollection("things")
	ctx := context.Background()

	_, err := coll.InsertMany(ctx, []any{
		bson.M{"kind": "a", "n": 1},
		bson.M{"kind": "b", "n": 2},
		bson.M{"kind": "b", "n": 3},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	t.Run("equality", func(t *testing.T) {
		n, err := coll.CountDocuments(ctx, bson.M{"kind": "b"})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 2 {
			t.Errorf("count = %d, want 2", n)
		}
	})

	t.Run("numeric equality across widths", func(t *testing.T) {
		// The store holds int32; int64 and int in filters must still match.
		n, err := coll.CountDocuments(ctx, bson.M{"n": int64(2)})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 1 {
			t.Errorf("count = %d, want 1", n)
		}
	})

	t.Run("string filter never matches a numeric field", func(t *testing.T) {
		n, err := coll.CountDocuments(ctx, bson.M{"n": "2"})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Errorf("count = %d, want 0", n)
		}
	})

	t.Run("in operator", func(t *testing.T) {
		n, err := coll.CountDocuments(ctx, bson.M{"n": bson.M{"$in": bson.A{1, 3}}})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 2 {
			t.Errorf("count = %d, want 2", n)
		}
	})

	t.Run("unsupported operator is an error", func(t *testing.T) {
		if _, err := coll.CountDocuments(ctx, bson.M{"n": bson.M{"$gt": 1}}); err == nil {
			t.Error("expected an error for an unsupported operator")
		}
	})

	t.Run("absent field never matches", func(t *testing.T) {
		n, err := coll.CountDocuments(ctx, bson.M{"missing": "x"})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Errorf("count = %d, want 0", n)
		}
	})
}

func TestMemoryCollectionConcurrentFindAndUpdate(t *testing.T) {
	// Find must serialize sorting, projection and marshaling against writers
	// that mutate the stored documents in place. Run under -race.
	coll := NewMemoryCollection("things")
	ctx := context.Background()

	docs := make([]any, 20)
	for i := range docs {
		docs[i] = bson.M{"kind": "a", "n": i}
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			raws, err := coll.Find(ctx, bson.M{"kind": "a"}, FindOptions{
				Sort:       bson.D{{Key: "n", Value: 1}},
				Projection: bson.M{"n": 1},
			})
			if err != nil {
				t.Errorf("find: %v", err)
				return
			}
			if len(raws) != len(docs) {
				t.Errorf("find returned %d documents, want %d", len(raws), len(docs))
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			update := bson.M{"$set": bson.M{"n": i}}
			if _, err := coll.UpdateMany(ctx, bson.M{"kind": "a"}, update, UpdateOptions{}); err != nil {
				t.Errorf("update: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestMemoryCollectionUpdate(t *testing.T) {
	coll := NewMemoryCollection("things")
	ctx := context.Background()

	if _, err := coll.InsertOne(ctx, bson.M{"kind": "a", "n": 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	res, err := coll.UpdateOne(ctx, bson.M{"kind": "a"}, bson.M{"$set": bson.M{"n": 9}}, UpdateOptions{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.ModifiedCount != 1 {
		t.Errorf("modified = %d, want 1", res.ModifiedCount)
	}

	n, err := coll.CountDocuments(ctx, bson.M{"n": 9})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	t.Run("rejects non-set operators", func(t *testing.T) {
		_, err := coll.UpdateOne(ctx, bson.M{"kind": "a"}, bson.M{"$inc": bson.M{"n": 1}}, UpdateOptions{})
		if err == nil {
			t.Error("expected an error for $inc")
		}
	})

	t.Run("upsert merges filter equality clauses", func(t *testing.T) {
		res, err := coll.UpdateOne(ctx, bson.M{"kind": "z"}, bson.M{"$set": bson.M{"n": 5}}, UpdateOptions{Upsert: true})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if res.UpsertedCount != 1 || res.UpsertedID == nil {
			t.Errorf("result = %+v", res)
		}
		count, err := coll.CountDocuments(ctx, bson.M{"kind": "z", "n": 5})
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})
}

func TestMemoryCollectionProjection(t *testing.T) {
	coll := NewMemoryCollection("things")
	ctx := context.Background()

	if _, err := coll.InsertOne(ctx, bson.M{"kind": "a", "n": 1, "note": "keep me out"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	raws, err := coll.Find(ctx, nil, FindOptions{Projection: bson.M{"kind": 1}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("len = %d", len(raws))
	}

	raw := raws[0]
	if raw.Lookup("kind").StringValue() != "a" {
		t.Error("projected field missing")
	}
	if raw.Lookup("note").Validate() == nil {
		t.Error("unprojected field leaked through")
	}
	if raw.Lookup("_id").Validate() != nil {
		t.Error("_id should be kept unless excluded explicitly")
	}

	t.Run("id excluded explicitly", func(t *testing.T) {
		raws, err := coll.Find(ctx, nil, FindOptions{Projection: bson.M{"kind": 1, "_id": 0}})
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if raws[0].Lookup("_id").Validate() == nil {
			t.Error("_id survived an explicit exclusion")
		}
	})
}

func TestMemoryCollectionSort(t *testing.T) {
	coll := NewMemoryCollection("things")
	ctx := context.Background()

	_, err := coll.InsertMany(ctx, []any{
		bson.M{"name": "b", "n": 2},
		bson.M{"name": "a", "n": 3},
		bson.M{"name": "c", "n": 1},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	t.Run("ascending", func(t *testing.T) {
		raws, err := coll.Find(ctx, nil, FindOptions{Sort: bson.D{{Key: "n", Value: 1}}})
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		var names []string
		for _, raw := range raws {
			names = append(names, raw.Lookup("name").StringValue())
		}
		if names[0] != "c" || names[1] != "b" || names[2] != "a" {
			t.Errorf("order = %v", names)
		}
	})

	t.Run("descending strings", func(t *testing.T) {
		raws, err := coll.Find(ctx, nil, FindOptions{Sort: bson.D{{Key: "name", Value: -1}}})
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got := raws[0].Lookup("name").StringValue(); got != "c" {
			t.Errorf("first = %q, want c", got)
		}
	})

	t.Run("bad direction is an error", func(t *testing.T) {
		if _, err := coll.Find(ctx, nil, FindOptions{Sort: bson.D{{Key: "n", Value: 2}}}); err == nil {
			t.Error("expected an error for direction 2")
		}
	})
}

func TestMemoryCollectionFindOneAndReplacePreservesID(t *testing.T) {
	coll := NewMemoryCollection("things")
	ctx := context.Background()

	res, err := coll.InsertOne(ctx, bson.M{"kind": "a"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	pre, err := coll.FindOneAndReplace(ctx, bson.M{"kind": "a"}, bson.M{"kind": "b"}, FindOptions{}, false)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if pre.Lookup("kind").StringValue() != "a" {
		t.Error("pre-image should be the original document")
	}

	raw, err := coll.FindOne(ctx, bson.M{"kind": "b"}, FindOptions{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if raw.Lookup("_id").ObjectID() != res.InsertedID.(bson.ObjectID) {
		t.Error("replacement must keep the original _id")
	}
}

func TestMemoryCollectionCreateIndexes(t *testing.T) {
	coll := NewMemoryCollection("things")

	names, err := coll.CreateIndexes(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "age", Value: -1}}},
	})
	if err != nil {
		t.Fatalf("create indexes: %v", err)
	}
	if len(names) != 2 || names[0] != "email_1" || names[1] != "age_-1" {
		t.Errorf("names = %v", names)
	}
	if got := coll.IndexNames(); len(got) != 2 {
		t.Errorf("recorded = %v", got)
	}
}
