// Package config loads labbook settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Storage       StorageConfig       `toml:"storage"`
	Blob          BlobConfig          `toml:"blob"`
	Log           LogConfig           `toml:"log"`
	Observability ObservabilityConfig `toml:"observability"`
}

// StorageConfig selects the backend holding the persisted state.
type StorageConfig struct {
	Driver      string `toml:"driver" env:"LABBOOK_STORAGE_DRIVER"`
	SQLitePath  string `toml:"sqlite_path" env:"LABBOOK_SQLITE_PATH"`
	PostgresDSN string `toml:"postgres_dsn" env:"LABBOOK_POSTGRES_DSN"`
	Key         string `toml:"key" env:"LABBOOK_STORAGE_KEY"`
}

// BlobConfig selects where backups are written.
type BlobConfig struct {
	Driver string   `toml:"driver" env:"LABBOOK_BLOB_DRIVER"`
	FSRoot string   `toml:"fs_root" env:"LABBOOK_BLOB_FS_ROOT"`
	S3     S3Config `toml:"s3"`
}

// S3Config holds bucket settings. Credentials fall back to the AWS default
// chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string `toml:"bucket" env:"LABBOOK_BLOB_S3_BUCKET"`
	Region          string `toml:"region" env:"LABBOOK_BLOB_S3_REGION"`
	Endpoint        string `toml:"endpoint" env:"LABBOOK_BLOB_S3_ENDPOINT"`
	PathStyle       bool   `toml:"path_style" env:"LABBOOK_BLOB_S3_PATH_STYLE"`
	AccessKeyID     string `toml:"access_key_id" env:"LABBOOK_BLOB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key" env:"LABBOOK_BLOB_S3_SECRET_ACCESS_KEY"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `toml:"level" env:"LABBOOK_LOG_LEVEL"`
}

// ObservabilityConfig chooses the tracer and metrics recorder handed to the service.
type ObservabilityConfig struct {
	// Tracing is off, json or otlp.
	Tracing      string `toml:"tracing" env:"LABBOOK_TRACING"`
	TraceFile    string `toml:"trace_file" env:"LABBOOK_TRACE_FILE"`
	OTLPEndpoint string `toml:"otlp_endpoint" env:"LABBOOK_OTLP_ENDPOINT"`
	// Metrics is off, expvar or prometheus.
	Metrics         string `toml:"metrics" env:"LABBOOK_METRICS"`
	MetricsTextfile string `toml:"metrics_textfile" env:"LABBOOK_METRICS_TEXTFILE"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "labbook.db",
			Key:        "lab_os_v1",
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "labbook-blobs",
			S3:     S3Config{Region: "us-east-1"},
		},
		Log: LogConfig{Level: "warn"},
		Observability: ObservabilityConfig{
			Tracing: "off",
			Metrics: "off",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults when
// the file does not exist, then applies LABBOOK_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Storage.SQLitePath = ExpandPath(cfg.Storage.SQLitePath)
	cfg.Blob.FSRoot = ExpandPath(cfg.Blob.FSRoot)
	cfg.Observability.TraceFile = ExpandPath(cfg.Observability.TraceFile)
	cfg.Observability.MetricsTextfile = ExpandPath(cfg.Observability.MetricsTextfile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown driver and mode names.
func (c *Config) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"storage.driver", c.Storage.Driver, []string{"memory", "sqlite", "postgres"}},
		{"blob.driver", c.Blob.Driver, []string{"fs", "s3", "memory"}},
		{"log.level", c.Log.Level, []string{"debug", "info", "warn", "error"}},
		{"observability.tracing", c.Observability.Tracing, []string{"off", "json", "otlp"}},
		{"observability.metrics", c.Observability.Metrics, []string{"off", "expvar", "prometheus"}},
	}
	for _, check := range checks {
		if !contains(check.allow, strings.ToLower(check.value)) {
			return fmt.Errorf("%s: unsupported value %q (want one of %s)", check.field, check.value, strings.Join(check.allow, ", "))
		}
	}
	if strings.EqualFold(c.Storage.Driver, "postgres") && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn: required when driver is postgres")
	}
	if strings.EqualFold(c.Blob.Driver, "s3") && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("blob.s3.bucket: required when driver is s3")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location. LABBOOK_CONFIG
// takes precedence.
func DefaultConfigPath() string {
	if p := os.Getenv("LABBOOK_CONFIG"); p != "" {
		return ExpandPath(p)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "labbook", "config.toml")
}
