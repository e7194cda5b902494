// Package viewer connects the catalog store, the current query and the
// renderer. Every user action is one call on Dispatcher and leaves a fully
// recomputed State behind it.
package viewer

import (
	"context"
	"fmt"
	"sync"

	"tapeview/internal/catalog"
	"tapeview/internal/source"
	"tapeview/internal/transfer"
	"tapeview/internal/view"
)

// State is everything needed to draw the page after an event.
type State struct {
	Model   view.Model
	Query   catalog.Query
	Options catalog.FilterOptions
}

type Dispatcher struct {
	mu       sync.Mutex
	store    *catalog.Store
	renderer *view.Renderer
	query    catalog.Query
}

var _ source.Loader = (*Dispatcher)(nil)

func NewDispatcher(store *catalog.Store, renderer *view.Renderer) *Dispatcher {
	return &Dispatcher{store: store, renderer: renderer, query: catalog.DefaultQuery()}
}

func (d *Dispatcher) Restore(ctx context.Context) []any {
	return d.store.Restore(ctx)
}

// Load normalizes raw and replaces the catalog with it. The query goes back
// to defaults since the old filter values may not exist in the new data.
func (d *Dispatcher) Load(ctx context.Context, raw any, source string) error {
	items, err := catalog.Normalize(raw)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.ReplaceAll(ctx, items, source)
	d.query = catalog.DefaultQuery()
	return nil
}

func (d *Dispatcher) Current() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state()
}

func (d *Dispatcher) SetQuery(q catalog.Query) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !q.Sort.Valid() {
		q.Sort = catalog.SortPriceAsc
	}
	d.query = q
	return d.state()
}

func (d *Dispatcher) Reset() State {
	return d.SetQuery(catalog.DefaultQuery())
}

// AddItem prepends a manually entered item. The query is kept so the user
// sees the new row only if it matches what they are looking at.
func (d *Dispatcher) AddItem(ctx context.Context, item catalog.Item) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.InsertOne(ctx, item); err != nil {
		return d.state(), err
	}
	return d.state(), nil
}

// Import replaces the catalog with the contents of an uploaded file. On
// error the catalog is untouched.
func (d *Dispatcher) Import(ctx context.Context, name string, data []byte) (int, error) {
	items, err := transfer.Import(name, data)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", name, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.ReplaceAll(ctx, items, "import: "+name)
	d.query = catalog.DefaultQuery()
	return len(items), nil
}

// ExportItems is the current view, or the whole catalog when the view is
// empty.
func (d *Dispatcher) ExportItems() []catalog.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := d.store.Snapshot()
	if shown := catalog.Apply(snap.Items, d.query); len(shown) > 0 {
		return shown
	}
	return snap.Items
}

func (d *Dispatcher) state() State {
	snap := d.store.Snapshot()
	shown := catalog.Apply(snap.Items, d.query)
	return State{
		Model:   d.renderer.Build(shown, len(snap.Items), snap.Source),
		Query:   d.query,
		Options: snap.Options,
	}
}
