package mongomap

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrMetaMissing", ErrMetaMissing, "record type declares no meta"},
		{"ErrConnectionMissing", ErrConnectionMissing, "connection is missing"},
		{"ErrConnectionIncorrect", ErrConnectionIncorrect, "connection is incorrect"},
		{"ErrConnectionUndefined", ErrConnectionUndefined, "connection is the undefined placeholder"},
		{"ErrCollectionIncorrect", ErrCollectionIncorrect, "collection name is incorrect or missing"},
		{"ErrNoData", ErrNoData, "required query response is empty"},
		{"ErrIDEmpty", ErrIDEmpty, "id is empty"},
		{"ErrDereferenceValue", ErrDereferenceValue, "wrong type of dereference value"},
		{"ErrInvalidID", ErrInvalidID, "invalid objectid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("error message = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestErrorTemplateSubstitution(t *testing.T) {
	err := ErrNoIndexes.WithCtx(map[string]any{"collection": "users"})
	want := "no indexes declared for collection users"
	if err.Error() != want {
		t.Errorf("rendered message = %q, want %q", err.Error(), want)
	}
}

func TestErrorExtraContext(t *testing.T) {
	// Context values without a placeholder are appended, sorted, so nothing
	// is lost in logs.
	err := ErrIDEmpty.WithCtx(map[string]any{"collection": "users", "attempt": 2})
	want := "id is empty (attempt=2 collection=users)"
	if err.Error() != want {
		t.Errorf("rendered message = %q, want %q", err.Error(), want)
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	withCtx := ErrNoData.WithCtx(map[string]any{"collection": "users"})

	if !errors.Is(withCtx, ErrNoData) {
		t.Error("expected errors.Is to match the prototype regardless of context")
	}
	if errors.Is(withCtx, ErrIDEmpty) {
		t.Error("expected errors.Is not to match a different code")
	}

	wrapped := fmt.Errorf("query failed: %w", withCtx)
	if !errors.Is(wrapped, ErrNoData) {
		t.Error("expected errors.Is to see through wrapping")
	}
}

func TestWithCtxLeavesPrototypeAlone(t *testing.T) {
	derived := ErrNoData.WithCtx(map[string]any{"collection": "users"})
	if ErrNoData.Ctx != nil {
		t.Error("prototype context was mutated")
	}
	if derived == ErrNoData {
		t.Error("WithCtx returned the prototype itself")
	}
}

func TestReconstructError(t *testing.T) {
	t.Run("known code", func(t *testing.T) {
		err := ReconstructError("query.no_data", map[string]any{"collection": "users"})
		if !errors.Is(err, ErrNoData) {
			t.Error("expected reconstructed error to match its prototype")
		}
		if err.Error() != "required query response is empty (collection=users)" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		err := ReconstructError("something.else", nil)
		if err.Error() != "something.else" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if err.Code != "something.else" {
			t.Errorf("code = %q", err.Code)
		}
	})
}

func TestErrorJSONRoundTrip(t *testing.T) {
	original := ErrInvalidDocument.WithCtx(map[string]any{"reason": "required field is not set", "field": "name"})

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Error
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if restored.Code != original.Code {
		t.Errorf("code = %q, want %q", restored.Code, original.Code)
	}
	if !errors.Is(&restored, ErrInvalidDocument) {
		t.Error("restored error lost its identity")
	}
	if restored.Error() != original.Error() {
		t.Errorf("message = %q, want %q", restored.Error(), original.Error())
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(ErrNoData); got != "query.no_data" {
		t.Errorf("CodeOf(ErrNoData) = %q", got)
	}
	if got := CodeOf(errors.New("driver failure")); got != "" {
		t.Errorf("CodeOf(plain error) = %q, want empty", got)
	}
}

func TestIsNoData(t *testing.T) {
	if !IsNoData(ErrNoData.WithCtx(nil)) {
		t.Error("expected IsNoData on a derived no-data error")
	}
	if IsNoData(ErrIDEmpty) {
		t.Error("did not expect IsNoData on a different code")
	}
	if IsNoData(errors.New("nope")) {
		t.Error("did not expect IsNoData on a plain error")
	}
}

func TestIsConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"meta missing", ErrMetaMissing, true},
		{"connection missing", ErrConnectionMissing, true},
		{"connection undefined", ErrConnectionUndefined, true},
		{"schema invalid", ErrSchemaInvalid, true},
		{"no indexes", ErrNoIndexes, true},
		{"no data", ErrNoData, false},
		{"id empty", ErrIDEmpty, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigError(tt.err); got != tt.want {
				t.Errorf("IsConfigError = %v, want %v", got, tt.want)
			}
		})
	}
}
