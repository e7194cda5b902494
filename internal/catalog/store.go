package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"tapeview/internal/cache"
)

// StorageKey is the single durable slot holding the whole catalog.
const StorageKey = "tape_items_v1"

const addedSuffix = " + added"

var (
	ErrMissingID    = errors.New("id is required")
	ErrMissingTitle = errors.New("title is required")
	ErrDuplicateID  = errors.New("an item with this id already exists")
)

// ValidationError names the field a manual add was rejected for.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Store owns the catalog. Callers never get at the backing slice; reads go
// through Snapshot and writes through ReplaceAll and InsertOne, both of which
// persist before returning.
type Store struct {
	mu      sync.RWMutex
	slot    cache.Cache
	items   []Item
	source  string
	options FilterOptions
}

type Snapshot struct {
	Items   []Item
	Source  string
	Options FilterOptions
}

func NewStore(slot cache.Cache) *Store {
	return &Store{slot: slot, source: "—", items: []Item{}}
}

func (s *Store) ReplaceAll(ctx context.Context, items []Item, source string) {
	s.mu.Lock()
	s.items = slices.Clone(items)
	if s.items == nil {
		s.items = []Item{}
	}
	s.source = source
	s.options = Options(s.items)
	s.mu.Unlock()

	slog.InfoContext(ctx, "catalog replaced", "items", len(items), "source", source)
	s.Persist(ctx)
}

func (s *Store) InsertOne(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	if strings.TrimSpace(item.Title) == "" {
		return &ValidationError{Field: "title", Err: ErrMissingTitle}
	}

	s.mu.Lock()
	if slices.ContainsFunc(s.items, func(x Item) bool { return x.ID == item.ID }) {
		s.mu.Unlock()
		return &ValidationError{Field: "id", Err: fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)}
	}
	s.items = slices.Insert(s.items, 0, item)
	s.source += addedSuffix
	s.options = Options(s.items)
	s.mu.Unlock()

	slog.InfoContext(ctx, "catalog item added", "id", item.ID)
	s.Persist(ctx)
	return nil
}

// Persist writes the catalog to the durable slot. It is best effort: a full
// disk or an unreachable backend is logged and otherwise ignored.
func (s *Store) Persist(ctx context.Context) {
	s.mu.RLock()
	payload, err := json.Marshal(s.items)
	s.mu.RUnlock()
	if err != nil {
		slog.WarnContext(ctx, "failed to encode catalog for persistence", "error", err)
		return
	}
	if err := s.slot.Put(ctx, StorageKey, string(payload), cache.Unconditional()); err != nil {
		slog.WarnContext(ctx, "failed to persist catalog", "error", err)
	}
}

// Restore returns the raw persisted list, or nil when there is nothing usable
// in the slot. Corruption is indistinguishable from absence.
func (s *Store) Restore(ctx context.Context) []any {
	raw, err := cache.ReadString(ctx, s.slot, StorageKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.WarnContext(ctx, "failed to read persisted catalog", "error", err)
		}
		return nil
	}
	if raw == "" {
		return nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.WarnContext(ctx, "ignoring unparsable persisted catalog", "error", err)
		return nil
	}
	arr, ok := parsed.([]any)
	if !ok {
		return nil
	}
	return arr
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Items:   slices.Clone(s.items),
		Source:  s.source,
		Options: s.options,
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
