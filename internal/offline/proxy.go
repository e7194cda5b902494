// Package offline is a versioned response cache in front of the catalog's
// origin. It serves the app shell and the data file when the network is
// gone, the way a service worker would, but as a plain http.RoundTripper.
package offline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"tapeview/internal/cache"
)

const keyPrefix = "offline/"

type State int

const (
	StateIdle State = iota
	StateInstalled
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	}
	return "idle"
}

type Config struct {
	// Origin is the scope every relative path resolves against.
	Origin    *url.URL
	Version   string
	Assets    []string
	ShellPath string
	DataPath  string
	// InstallConcurrency bounds parallel fetches during Install.
	InstallConcurrency int
}

func DefaultAssets() []string {
	return []string{
		"./",
		"index.html",
		"manifest.webmanifest",
		"static/style.css",
		"static/icon.svg",
		"data/products.json",
	}
}

type Proxy struct {
	cfg     Config
	cache   cache.ListCache
	network http.RoundTripper

	mu    sync.RWMutex
	state State
}

var _ http.RoundTripper = (*Proxy)(nil)

func New(cfg Config, c cache.ListCache, network http.RoundTripper) (*Proxy, error) {
	if cfg.Origin == nil || !cfg.Origin.IsAbs() {
		return nil, errors.New("offline proxy needs an absolute origin")
	}
	if cfg.Version == "" || strings.Contains(cfg.Version, "/") {
		return nil, fmt.Errorf("invalid cache version %q", cfg.Version)
	}
	origin := *cfg.Origin
	if !strings.HasSuffix(origin.Path, "/") {
		origin.Path += "/"
	}
	cfg.Origin = &origin
	if cfg.Assets == nil {
		cfg.Assets = DefaultAssets()
	}
	if cfg.ShellPath == "" {
		cfg.ShellPath = "index.html"
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "data/products.json"
	}
	if cfg.InstallConcurrency <= 0 {
		cfg.InstallConcurrency = 4
	}
	if network == nil {
		network = http.DefaultTransport
	}
	return &Proxy{cfg: cfg, cache: c, network: network}, nil
}

func (p *Proxy) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Ready reports an error until the proxy has been activated.
func (p *Proxy) Ready(context.Context) error {
	if s := p.State(); s != StateActive {
		return fmt.Errorf("offline cache %s", s)
	}
	return nil
}

// Start installs and then activates immediately, without waiting for
// existing clients to go away.
func (p *Proxy) Start(ctx context.Context) error {
	if err := p.Install(ctx); err != nil {
		return err
	}
	return p.Activate(ctx)
}

// Install fetches every manifest asset and stores them under the current
// version. Either all assets are stored or none are.
func (p *Proxy) Install(ctx context.Context) error {
	var mu sync.Mutex
	fetched := make(map[string]string, len(p.cfg.Assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.InstallConcurrency)
	for _, asset := range p.cfg.Assets {
		target := p.resolve(asset)
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, target.String(), nil)
			if err != nil {
				return err
			}
			resp, err := p.network.RoundTrip(req)
			if err != nil {
				return fmt.Errorf("install %s: %w", target, err)
			}
			defer func() { _ = resp.Body.Close() }()
			if !ok(resp) {
				return fmt.Errorf("install %s: HTTP %d", target, resp.StatusCode)
			}
			dump, err := httputil.DumpResponse(resp, true)
			if err != nil {
				return fmt.Errorf("install %s: %w", target, err)
			}
			mu.Lock()
			fetched[p.key(target)] = string(dump)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for key, value := range fetched {
		if err := p.cache.Put(ctx, key, value, cache.Unconditional()); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
	}

	p.mu.Lock()
	if p.state == StateIdle {
		p.state = StateInstalled
	}
	p.mu.Unlock()
	slog.InfoContext(ctx, "offline cache installed", "version", p.cfg.Version, "assets", len(fetched))
	return nil
}

// Activate drops every entry cached under another version and starts
// intercepting requests.
func (p *Proxy) Activate(ctx context.Context) error {
	if p.State() == StateIdle {
		return errors.New("offline cache is not installed")
	}
	keys, err := p.cache.List(ctx, keyPrefix, "")
	if err != nil {
		return fmt.Errorf("list cached versions: %w", err)
	}
	purged := 0
	for _, k := range keys {
		version, _, _ := strings.Cut(k, "/")
		if version == p.cfg.Version {
			continue
		}
		if err := p.cache.Delete(ctx, keyPrefix+k); err != nil {
			return fmt.Errorf("purge %s: %w", k, err)
		}
		purged++
	}

	p.mu.Lock()
	p.state = StateActive
	p.mu.Unlock()
	slog.InfoContext(ctx, "offline cache active", "version", p.cfg.Version, "purged", purged)
	return nil
}

func (p *Proxy) RoundTrip(req *http.Request) (*http.Response, error) {
	return p.Route(req)
}

// Route decides per request where the response comes from:
//
//	non-GET      network, untouched
//	navigation   cached shell, else network
//	data file    network (stored on success), else cache, else []
//	anything     cache, else network
//
// Before activation every request goes to the network.
func (p *Proxy) Route(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || p.State() != StateActive {
		countResponse(routePassthrough, sourceNetwork)
		return p.network.RoundTrip(req)
	}

	switch {
	case isNavigation(req):
		if resp := p.lookup(req, p.key(p.resolve(p.cfg.ShellPath))); resp != nil {
			countResponse(routeNavigate, sourceCache)
			return resp, nil
		}
		countResponse(routeNavigate, sourceNetwork)
		return p.network.RoundTrip(req)
	case p.isData(req):
		return p.networkFirst(req)
	}

	if resp := p.lookup(req, p.key(req.URL)); resp != nil {
		countResponse(routeAsset, sourceCache)
		return resp, nil
	}
	countResponse(routeAsset, sourceNetwork)
	return p.network.RoundTrip(req)
}

func (p *Proxy) networkFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	stripped := *req.URL
	stripped.RawQuery = ""
	key := p.key(&stripped)

	resp, err := p.network.RoundTrip(req)
	if err == nil && ok(resp) {
		if err = buffer(resp); err == nil {
			if dump, dumpErr := httputil.DumpResponse(resp, true); dumpErr != nil {
				slog.WarnContext(ctx, "failed to encode data file", "url", stripped.String(), "error", dumpErr)
			} else if putErr := p.cache.Put(ctx, key, string(dump), cache.Unconditional()); putErr != nil {
				slog.WarnContext(ctx, "failed to refresh cached data file", "url", stripped.String(), "error", putErr)
			}
			countResponse(routeData, sourceNetwork)
			return resp, nil
		}
		err = fmt.Errorf("read body: %w", err)
	}
	if err == nil {
		slog.WarnContext(ctx, "data file fetch failed", "url", req.URL.String(), "status", resp.StatusCode)
		_ = resp.Body.Close()
	} else {
		slog.WarnContext(ctx, "data file fetch failed", "url", req.URL.String(), "error", err)
	}

	if cached := p.lookup(req, key); cached != nil {
		countResponse(routeData, sourceCache)
		return cached, nil
	}
	countResponse(routeData, sourceFallback)
	return emptyJSON(req), nil
}

// buffer reads the whole body into memory so a connection that drops
// mid-body is seen before the response is handed out.
func buffer(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return nil
}

func (p *Proxy) lookup(req *http.Request, key string) *http.Response {
	ctx := req.Context()
	raw, err := cache.ReadString(ctx, p.cache, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.WarnContext(ctx, "failed to read offline cache", "key", key, "error", err)
		}
		return nil
	}
	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(raw)), req)
	if err != nil {
		slog.WarnContext(ctx, "ignoring corrupt offline cache entry", "key", key, "error", err)
		return nil
	}
	return resp
}

func (p *Proxy) resolve(rel string) *url.URL {
	return p.cfg.Origin.ResolveReference(&url.URL{Path: rel})
}

func (p *Proxy) key(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	return keyPrefix + p.cfg.Version + "/" + url.PathEscape(clean.String())
}

func (p *Proxy) isData(req *http.Request) bool {
	return strings.HasSuffix(req.URL.Path, path.Base(p.cfg.DataPath))
}

func isNavigation(req *http.Request) bool {
	mode := req.Header.Get("Sec-Fetch-Mode")
	if mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

func emptyJSON(req *http.Request) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"application/json"}},
		Body:          io.NopCloser(strings.NewReader("[]")),
		ContentLength: 2,
		Request:       req,
	}
}
