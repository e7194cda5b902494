// Package source seeds the catalog at startup. The durable slot always wins
// over the data file so offline edits survive a restart.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const (
	LabelLocal = "local storage (offline)"
	LabelNone  = "none (no data/products.json)"
)

// Opener yields the bulk data file.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Label() string
}

type File struct {
	Path string
}

func (f File) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f File) Label() string { return "products.json" }

// Remote fetches the data file over HTTP. Client is usually backed by the
// offline proxy so a dead network still yields the cached copy.
type Remote struct {
	Client *http.Client
	URL    string
}

func (r Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build data request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.URL, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: HTTP %d", r.URL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (r Remote) Label() string { return "products.json" }

// Loader is the part of the dispatcher seeding needs.
type Loader interface {
	Restore(ctx context.Context) []any
	Load(ctx context.Context, raw any, source string) error
}

// Seed loads the catalog from the durable slot, then the data file, then
// falls back to an empty catalog. The returned label says which one won.
func Seed(ctx context.Context, l Loader, data Opener) (string, error) {
	if local := l.Restore(ctx); local != nil {
		if err := l.Load(ctx, local, LabelLocal); err != nil {
			return "", err
		}
		return LabelLocal, nil
	}

	raw, err := read(ctx, data)
	if err == nil {
		if err = l.Load(ctx, raw, data.Label()); err == nil {
			return data.Label(), nil
		}
	}
	if loadErr := l.Load(ctx, []any{}, LabelNone); loadErr != nil {
		return "", loadErr
	}
	return LabelNone, err
}

func read(ctx context.Context, data Opener) (any, error) {
	if data == nil {
		return nil, fmt.Errorf("no data source configured")
	}
	rc, err := data.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var raw any
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	return raw, nil
}
