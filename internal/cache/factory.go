package cache

import (
	"fmt"
	"log/slog"

	"tapeview/internal/config"
)

func MakeCache(cfg config.StorageConfig) (ListCache, error) {
	switch cfg.Backend {
	case "blob":
		slog.Info("Using Azure Blob Storage for cache", "container", cfg.BlobContainer)
		return NewBlobCache(cfg.AccountName, cfg.AccountKey, cfg.BlobContainer)
	case "sqlite":
		slog.Info("Using sqlite for cache", "path", cfg.SQLitePath)
		return NewSQLiteCache(cfg.SQLitePath)
	case "memory":
		return NewInMemoryCache(), nil
	case "file", "":
		return NewFileCache(cfg.Dir), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
