package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"tapeview/internal/cache"
	"tapeview/internal/config"
	"tapeview/internal/logger"
)

func main() {
	var serve bool
	var addr string
	var configPath string
	var importPath string
	var exportPath string
	var logHours int
	var help bool

	flag.BoolVar(&serve, "serve", false, "Run HTTP server mode")
	flag.StringVar(&addr, "addr", "", "Address to bind in server mode (overrides config)")
	flag.StringVar(&configPath, "config", "", "Path to a config file (yaml, json or toml)")
	flag.StringVar(&importPath, "import", "", "Normalize a catalog file (.json or .xlsx) and write it to -export")
	flag.StringVar(&exportPath, "export", "", "Output for -import; .xlsx writes a spreadsheet, empty or - writes JSON to stdout")
	flag.IntVar(&logHours, "logs", 0, "Print shipped logs from the last N hours")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.Parse()

	if help {
		flag.Usage()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	ctx := context.Background()
	l, shutdownLogs, err := logger.New(ctx, cfg, os.Stderr)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	slog.SetDefault(l)

	err = run(ctx, cfg, serve, importPath, exportPath, logHours)
	if err != nil {
		slog.ErrorContext(ctx, "tapeview failed", "error", err)
	}
	if shutdownErr := shutdownLogs(ctx); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", shutdownErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, serve bool, importPath, exportPath string, logHours int) error {
	switch {
	case serve:
		return runServer(ctx, cfg)
	case importPath != "":
		return convert(importPath, exportPath, os.Stdout)
	case logHours > 0:
		return printLogs(ctx, cfg, logHours)
	}
	flag.Usage()
	return fmt.Errorf("nothing to do: use -serve, -import or -logs")
}

func printLogs(ctx context.Context, cfg *config.Config, hours int) error {
	if cfg.Logs.BlobContainer == "" {
		return fmt.Errorf("logs.blob_container is not configured")
	}
	store, err := cache.NewBlobCache(cfg.Storage.AccountName, cfg.Storage.AccountKey, cfg.Logs.BlobContainer)
	if err != nil {
		return fmt.Errorf("failed to open log container: %w", err)
	}
	now := time.Now()
	entries, err := logger.ReadShipped(ctx, store, now.Add(-time.Duration(hours)*time.Hour), now)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e.Format())
	}
	return nil
}
