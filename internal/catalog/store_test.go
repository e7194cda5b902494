package catalog

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"tapeview/internal/cache"
)

func nan() float64 { return math.NaN() }

type failingSlot struct{ cache.Cache }

func (failingSlot) Put(context.Context, string, string, cache.PutOptions) error {
	return errors.New("quota exceeded")
}

func (failingSlot) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("backend down")
}

func TestStoreReplaceAllPersists(t *testing.T) {
	ctx := context.Background()
	slot := cache.NewInMemoryCache()
	s := NewStore(slot)

	s.ReplaceAll(ctx, fixture(), "products.json")

	snap := s.Snapshot()
	if len(snap.Items) != 5 || snap.Source != "products.json" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Options.Widths) != 3 {
		t.Fatalf("expected option sets to be recomputed, got %+v", snap.Options)
	}

	restored := NewStore(slot).Restore(ctx)
	items, err := Normalize(restored)
	if err != nil {
		t.Fatalf("restore produced unusable data: %v", err)
	}
	if len(items) != 5 || items[0].ID != "R-1" {
		t.Fatalf("unexpected restored items %+v", items)
	}
}

func TestStoreRestoreTreatsCorruptionAsMissing(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"garbage": "{not json",
		"object":  `{"items": []}`,
		"empty":   "",
	} {
		t.Run(name, func(t *testing.T) {
			slot := cache.NewInMemoryCache()
			if err := slot.Put(ctx, StorageKey, raw, cache.Unconditional()); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			if got := NewStore(slot).Restore(ctx); got != nil {
				t.Fatalf("expected nil, got %v", got)
			}
		})
	}
	if got := NewStore(cache.NewInMemoryCache()).Restore(ctx); got != nil {
		t.Fatalf("expected nil for absent slot, got %v", got)
	}
	if got := NewStore(failingSlot{}).Restore(ctx); got != nil {
		t.Fatalf("expected nil for failing slot, got %v", got)
	}
}

func TestStorePersistFailureIsSwallowed(t *testing.T) {
	s := NewStore(failingSlot{})
	s.ReplaceAll(context.Background(), fixture(), "x")
	if err := s.InsertOne(context.Background(), Item{ID: "new", Title: "New"}); err != nil {
		t.Fatalf("persistence failure must not surface: %v", err)
	}
	if s.Len() != 6 {
		t.Fatalf("expected in-memory catalog to be updated, got %d", s.Len())
	}
}

func TestStoreInsertOneValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewInMemoryCache())
	s.ReplaceAll(ctx, fixture(), "products.json")

	cases := []struct {
		name  string
		item  Item
		want  error
		field string
	}{
		{"missing id", Item{Title: "t"}, ErrMissingID, "id"},
		{"blank id", Item{ID: "  ", Title: "t"}, ErrMissingID, "id"},
		{"missing title", Item{ID: "new"}, ErrMissingTitle, "title"},
		{"duplicate", Item{ID: "R-1", Title: "dup"}, ErrDuplicateID, "id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := s.InsertOne(ctx, c.item)
			if !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != c.field {
				t.Fatalf("expected validation error on %s, got %v", c.field, err)
			}
		})
	}

	// case-sensitive
	if err := s.InsertOne(ctx, Item{ID: "r-1", Title: "lower"}); err != nil {
		t.Fatalf("expected case-different id to be accepted: %v", err)
	}
	if s.Len() != 6 {
		t.Fatalf("expected exactly one insert, got %d items", s.Len())
	}
}

func TestStoreInsertOnePrependsAndIsSearchable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewInMemoryCache())
	s.ReplaceAll(ctx, fixture(), "products.json")

	item := Item{ID: "NEW-9", Title: "Fresh roll", Spec: Spec{WidthMM: Num(19)}, PriceUAH: Num(99)}
	if err := s.InsertOne(ctx, item); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	snap := s.Snapshot()
	if snap.Items[0].ID != "NEW-9" {
		t.Fatalf("expected prepend, got first %s", snap.Items[0].ID)
	}
	if snap.Source != "products.json + added" {
		t.Fatalf("unexpected source label %q", snap.Source)
	}
	if snap.Options.Widths[0] != 19 {
		t.Fatalf("expected options to include the new width, got %v", snap.Options.Widths)
	}
	for _, mode := range SortModes {
		view := Apply(snap.Items, Query{Text: "NEW-9", Sort: mode})
		if len(view) != 1 || view[0].ID != "NEW-9" {
			t.Fatalf("mode %s: expected exactly the new item, got %v", mode, ids(view))
		}
	}
}

func TestStoreBulkAllowsDuplicateIDs(t *testing.T) {
	s := NewStore(cache.NewInMemoryCache())
	s.ReplaceAll(context.Background(), []Item{{ID: "a"}, {ID: "a"}}, "import")
	if s.Len() != 2 {
		t.Fatalf("expected duplicates to survive bulk load, got %d", s.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(cache.NewInMemoryCache())
	s.ReplaceAll(context.Background(), fixture(), "x")
	snap := s.Snapshot()
	snap.Items[0].ID = "mutated"
	if s.Snapshot().Items[0].ID != "R-1" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}
