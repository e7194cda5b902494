package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env     string        `mapstructure:"env"`
	Addr    string        `mapstructure:"addr"`
	Locale  string        `mapstructure:"locale"`
	Data    DataConfig    `mapstructure:"data"`
	Storage StorageConfig `mapstructure:"storage"`
	Offline OfflineConfig `mapstructure:"offline"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logs    LogsConfig    `mapstructure:"logs"`
}

type DataConfig struct {
	File string `mapstructure:"file"` // served at /data/products.json
	URL  string `mapstructure:"url"`  // fetched at startup instead of File when set
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // "file", "memory", "sqlite" or "blob"
	Dir           string `mapstructure:"dir"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	BlobContainer string `mapstructure:"blob_container"`
}

type OfflineConfig struct {
	Origin   string `mapstructure:"origin"`
	Version  string `mapstructure:"version"`
	RetryMax int    `mapstructure:"retry_max"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogsConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn or error
	// BlobContainer, when set, also ships logs to an append blob in the
	// storage account.
	BlobContainer string `mapstructure:"blob_container"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("env", "prod")
	v.SetDefault("addr", ":8080")
	v.SetDefault("locale", "uk")
	v.SetDefault("data.file", "./data/products.json")
	v.SetDefault("data.url", "")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", "cache")
	v.SetDefault("storage.sqlite_path", "./data/tapeview.db")
	v.SetDefault("storage.account_name", "")
	v.SetDefault("storage.account_key", "")
	v.SetDefault("storage.blob_container", "tapeview")
	v.SetDefault("offline.origin", "")
	v.SetDefault("offline.version", "tape-json-viewer-v2")
	v.SetDefault("offline.retry_max", 1)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.blob_container", "")
}

// Load reads an optional config file and then TAPE_* environment variables,
// e.g. TAPE_STORAGE_BACKEND=sqlite. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("TAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "memory", "sqlite", "blob":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "blob" && c.Storage.AccountName == "" {
		return errors.New("storage.account_name is required for the blob backend")
	}
	switch c.Logs.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logs.Level)
	}
	if c.Logs.BlobContainer != "" && c.Storage.AccountName == "" {
		return errors.New("storage.account_name is required to ship logs to blob storage")
	}
	if c.Offline.RetryMax < 0 {
		return errors.New("offline.retry_max must not be negative")
	}
	return nil
}
