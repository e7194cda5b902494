package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tapeview/internal/cache"
	"tapeview/internal/catalog"
)

type storeLoader struct {
	store *catalog.Store
}

func (s storeLoader) Restore(ctx context.Context) []any { return s.store.Restore(ctx) }

func (s storeLoader) Load(ctx context.Context, raw any, source string) error {
	items, err := catalog.Normalize(raw)
	if err != nil {
		return err
	}
	s.store.ReplaceAll(ctx, items, source)
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestSeedPrefersDurableSlot(t *testing.T) {
	ctx := context.Background()
	slot := cache.NewInMemoryCache()
	if err := slot.Put(ctx, catalog.StorageKey, `[{"id":"saved"}]`, cache.Unconditional()); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	store := catalog.NewStore(slot)

	label, err := Seed(ctx, storeLoader{store}, File{Path: writeFile(t, `[{"id":"file"}]`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != LabelLocal {
		t.Fatalf("expected local label, got %q", label)
	}
	if got := store.Snapshot().Items[0].ID; got != "saved" {
		t.Fatalf("expected slot contents, got %s", got)
	}
}

func TestSeedFallsBackToDataFile(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(cache.NewInMemoryCache())

	label, err := Seed(ctx, storeLoader{store}, File{Path: writeFile(t, `[{"id":"a"},{"id":"b"}]`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "products.json" || store.Len() != 2 {
		t.Fatalf("unexpected seed result %q with %d items", label, store.Len())
	}
	// the data file is now persisted and wins next time
	if restored := store.Restore(ctx); len(restored) != 2 {
		t.Fatalf("expected data file to be persisted, got %v", restored)
	}
}

func TestSeedEmptyWhenNothingAvailable(t *testing.T) {
	ctx := context.Background()
	for name, opener := range map[string]Opener{
		"missing file": File{Path: filepath.Join(t.TempDir(), "nope.json")},
		"not an array": File{Path: writeFile(t, `{"items": 3}`)},
		"bad json":     File{Path: writeFile(t, `[{`)},
	} {
		t.Run(name, func(t *testing.T) {
			store := catalog.NewStore(cache.NewInMemoryCache())
			label, err := Seed(ctx, storeLoader{store}, opener)
			if err == nil {
				t.Fatalf("expected the underlying failure to be reported")
			}
			if label != LabelNone || store.Len() != 0 {
				t.Fatalf("expected empty catalog labelled %q, got %q with %d items", LabelNone, label, store.Len())
			}
			if store.Snapshot().Source != LabelNone {
				t.Fatalf("unexpected source %q", store.Snapshot().Source)
			}
		})
	}
}

func TestRemoteOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/products.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"remote"}]`))
	}))
	defer srv.Close()

	store := catalog.NewStore(cache.NewInMemoryCache())
	label, err := Seed(context.Background(), storeLoader{store}, Remote{Client: srv.Client(), URL: srv.URL + "/data/products.json"})
	if err != nil || label != "products.json" {
		t.Fatalf("unexpected seed result %q, %v", label, err)
	}
	if store.Snapshot().Items[0].ID != "remote" {
		t.Fatalf("unexpected items %+v", store.Snapshot().Items)
	}

	_, err = Remote{Client: srv.Client(), URL: srv.URL + "/missing"}.Open(context.Background())
	if err == nil {
		t.Fatalf("expected error for 404")
	}
}
