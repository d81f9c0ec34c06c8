package mongomap

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSaveInsertsUnsavedInstance(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	user := &testUser{Name: "alice", Age: 30}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}
	if user.GetID().IsZero() {
		t.Fatal("first save must assign an identifier")
	}

	n, err := coll.CountDocuments(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSaveReplacesPersistedInstance(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	user := &testUser{Name: "alice", Age: 30}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}
	id := user.GetID()

	user.Age = 31
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if user.GetID() != id {
		t.Error("saving again must not change the identifier")
	}

	n, err := coll.CountDocuments(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d after re-save, want 1", n)
	}

	stored, err := coll.Dereference(ctx, id)
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if stored.Age != 31 {
		t.Errorf("age = %d, want 31", stored.Age)
	}
}

func TestSaveLiteralPicksUpLaterFields(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	// A never-marked literal relies on the non-zero fallback; a field set
	// between two saves must reach the store on the second one.
	user := &testUser{Name: "alice"}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}

	user.Age = 33
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("second save: %v", err)
	}

	stored, err := coll.Dereference(ctx, user.GetID())
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if stored.Age != 33 {
		t.Errorf("age = %d, want 33", stored.Age)
	}
	if stored.Name != "alice" {
		t.Errorf("name = %q", stored.Name)
	}
}

func TestUpdate(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	user := &testUser{Name: "alice", Age: 30}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := coll.Update(ctx, user, bson.M{"age": 31, "email": "alice@example.com"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// The instance and the stored document move together.
	if user.Age != 31 || user.Email != "alice@example.com" {
		t.Errorf("instance = %+v", user)
	}
	stored, err := coll.Dereference(ctx, user.GetID())
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if stored.Age != 31 || stored.Email != "alice@example.com" {
		t.Errorf("stored = %+v", stored)
	}
	if stored.Name != "alice" {
		t.Errorf("name = %q, untouched fields must survive", stored.Name)
	}
}

func TestUpdateRejections(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	t.Run("unsaved instance", func(t *testing.T) {
		err := coll.Update(ctx, &testUser{Name: "alice"}, bson.M{"age": 31})
		if !errors.Is(err, ErrIDEmpty) {
			t.Errorf("error = %v, want ErrIDEmpty", err)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		user := &testUser{Name: "alice"}
		if err := coll.Save(ctx, user); err != nil {
			t.Fatalf("save: %v", err)
		}
		err := coll.Update(ctx, user, bson.M{"nickname": "al"})
		if !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("error = %v, want ErrInvalidDocument", err)
		}
	})

	t.Run("wrong value type", func(t *testing.T) {
		user := &testUser{Name: "bob"}
		if err := coll.Save(ctx, user); err != nil {
			t.Fatalf("save: %v", err)
		}
		err := coll.Update(ctx, user, bson.M{"age": "thirty"})
		if !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("error = %v, want ErrInvalidDocument", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	user := &testUser{Name: "alice", Age: 30}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Another writer changes the document behind the instance's back.
	_, err := coll.UpdateOne(ctx, bson.M{"_id": user.GetID()}, bson.M{"$set": bson.M{"age": 35}}, UpdateOptions{})
	if err != nil {
		t.Fatalf("out-of-band update: %v", err)
	}

	if err := coll.Refresh(ctx, user); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if user.Age != 35 {
		t.Errorf("age = %d, want 35", user.Age)
	}
	if user.Name != "alice" {
		t.Errorf("name = %q", user.Name)
	}
}

func TestRefreshRejections(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	t.Run("unsaved instance", func(t *testing.T) {
		if err := coll.Refresh(ctx, &testUser{Name: "alice"}); !errors.Is(err, ErrIDEmpty) {
			t.Errorf("error = %v, want ErrIDEmpty", err)
		}
	})

	t.Run("document gone", func(t *testing.T) {
		user := &testUser{Name: "alice"}
		if err := coll.Save(ctx, user); err != nil {
			t.Fatalf("save: %v", err)
		}
		if _, err := coll.DeleteOne(ctx, bson.M{"_id": user.GetID()}); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := coll.Refresh(ctx, user); !errors.Is(err, ErrNoData) {
			t.Errorf("error = %v, want ErrNoData", err)
		}
	})
}

func TestDelete(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	user := &testUser{Name: "alice", Age: 30}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := coll.Delete(ctx, user); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The document is gone, the identifier is cleared, the fields remain.
	if !user.GetID().IsZero() {
		t.Error("delete must clear the identifier")
	}
	if user.Name != "alice" || user.Age != 30 {
		t.Errorf("fields changed on delete: %+v", user)
	}
	n, err := coll.CountDocuments(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	// A deleted instance is unsaved again: deleting twice fails, saving
	// again creates a new document.
	if err := coll.Delete(ctx, user); !errors.Is(err, ErrIDEmpty) {
		t.Errorf("second delete error = %v, want ErrIDEmpty", err)
	}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if user.GetID().IsZero() {
		t.Error("re-save must assign a fresh identifier")
	}
}

// The full lifecycle in one pass: create, mutate, reload, remove.
func TestRecordLifecycle(t *testing.T) {
	coll := newUserCollection(t)
	ctx := context.Background()

	user := &testUser{Name: "alice", Email: "alice@example.com", Age: 30}
	if err := coll.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}
	id := user.GetID()

	if err := coll.Update(ctx, user, bson.M{"age": 31}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := coll.Refresh(ctx, user); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if user.Age != 31 || user.Email != "alice@example.com" {
		t.Errorf("refreshed = %+v", user)
	}
	if user.GetID() != id {
		t.Error("identifier drifted across the lifecycle")
	}

	if err := coll.Delete(ctx, user); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := coll.Dereference(ctx, id); !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData after delete", err)
	}
}
