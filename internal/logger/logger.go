// Package logger builds the process-wide slog logger. Records always go to
// stderr as JSON and, depending on configuration, also to an OTLP collector
// and an Azure append blob.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"

	"tapeview/internal/config"
)

const serviceName = "tapeview"

// New returns the logger and a shutdown func that flushes every sink.
func New(ctx context.Context, cfg *config.Config, stderr io.Writer) (*slog.Logger, func(context.Context) error, error) {
	level := ParseLevel(cfg.Logs.Level)
	if cfg.Env == "dev" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewJSONHandler(stderr, opts)}
	var closers []func(context.Context) error

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		provider, err := newLoggerProvider(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up otlp log export: %w", err)
		}
		global.SetLoggerProvider(provider)
		handlers = append(handlers, otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)))
		closers = append(closers, provider.Shutdown)
	}

	if cfg.Logs.BlobContainer != "" {
		w, err := newAppendBlobWriter(ctx, blobSinkConfig{
			AccountName: cfg.Storage.AccountName,
			AccountKey:  cfg.Storage.AccountKey,
			Container:   cfg.Logs.BlobContainer,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up blob log sink: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
		closers = append(closers, func(context.Context) error { return w.Close() })
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(lo.Map(closers, func(c func(context.Context) error, _ int) error { return c(ctx) })...)
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), shutdown, nil
	}
	return slog.New(fanout(handlers)), shutdown, nil
}

func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func newLoggerProvider(ctx context.Context) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploghttp.New(ctx)
	if err != nil {
		return nil, err
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}

// fanout hands each record to every handler that wants it.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return lo.SomeBy(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithAttrs(attrs) }))
}

func (f fanout) WithGroup(name string) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithGroup(name) }))
}
