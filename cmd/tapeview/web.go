package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tapeview/internal/cache"
	"tapeview/internal/catalog"
	"tapeview/internal/config"
	"tapeview/internal/offline"
	"tapeview/internal/source"
	"tapeview/internal/static"
	"tapeview/internal/templates"
	"tapeview/internal/view"
	"tapeview/internal/viewer"
)

const dataPath = "data/products.json"

type app struct {
	handler    http.Handler
	dispatcher *viewer.Dispatcher
	data       source.Opener
	proxy      *offline.Proxy
	store      cache.ListCache
	seeded     atomic.Bool
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := cache.MakeCache(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	if err := templates.Init(static.StyleAssetPath); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &app{
		store:      store,
		dispatcher: viewer.NewDispatcher(catalog.NewStore(store), view.NewRenderer(cfg.Locale)),
		data:       source.File{Path: cfg.Data.File},
	}

	mux := http.NewServeMux()
	static.Register(mux)
	viewer.NewHandler(a.dispatcher, cfg.Data.File).Register(mux)

	var transport http.RoundTripper = offline.NewTransport(cfg.Offline.RetryMax)
	dataURL := cfg.Data.URL
	if cfg.Offline.Origin != "" {
		origin, err := url.Parse(cfg.Offline.Origin)
		if err != nil {
			return nil, fmt.Errorf("invalid offline origin: %w", err)
		}
		a.proxy, err = offline.New(offline.Config{
			Origin:   origin,
			Version:  cfg.Offline.Version,
			DataPath: dataPath,
		}, store, transport)
		if err != nil {
			return nil, fmt.Errorf("failed to create offline proxy: %w", err)
		}
		mux.Handle("/mirror/", a.proxy.Handler("/mirror/"))
		transport = a.proxy
		if dataURL == "" {
			dataURL = origin.JoinPath(dataPath).String()
		}
	}
	if dataURL != "" {
		a.data = source.Remote{Client: &http.Client{Transport: transport, Timeout: 30 * time.Second}, URL: dataURL}
	}

	ro := &readyOnce{}
	ro.Add(ReadyFunc(func(context.Context) error {
		if !a.seeded.Load() {
			return errors.New("catalog not loaded yet")
		}
		return nil
	}))
	if a.proxy != nil {
		ro.Add(a.proxy)
	}
	mux.Handle("/ready", ro)

	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	a.handler = WithMiddleware(mux, cfg.Metrics.Enabled)
	return a, nil
}

// warmUp loads the catalog and then brings up the offline cache. It runs
// after the listener is open since the origin may be this server.
func (a *app) warmUp(ctx context.Context) {
	label, err := source.Seed(ctx, a.dispatcher, a.data)
	if err != nil {
		slog.WarnContext(ctx, "no catalog data available", "source", label, "error", err)
	} else {
		slog.InfoContext(ctx, "catalog loaded", "source", label)
	}
	a.seeded.Store(true)

	if a.proxy == nil {
		return
	}
	if err := a.proxy.Start(ctx); err != nil {
		slog.WarnContext(ctx, "offline cache not installed, requests pass through", "error", err)
	}
}

func (a *app) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	server := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Serving tapeview", "address", ln.Addr().String())
		serverErrors <- server.Serve(ln)
	}()

	warmCtx, cancelWarm := context.WithCancel(ctx)
	defer cancelWarm()
	go a.warmUp(warmCtx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)
		cancelWarm()
		return gracefulShutdown(server)
	}
}

func gracefulShutdown(svr *http.Server) error {
	// Give outstanding requests 25 seconds to complete (kubernetes has 30 second grace period)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
		if closeErr := svr.Close(); closeErr != nil {
			slog.Error("Server close error", "error", closeErr)
		}
		return err
	}
	return nil
}
