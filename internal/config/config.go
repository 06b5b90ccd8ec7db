// Package config loads the service configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/driftwatch/driftwatch/internal/drift"
)

// Default listen addresses.
const (
	DefaultIngestAddr = ":4400"
	DefaultAPIAddr    = ":8080"
)

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	// IngestAddr is where the traffic receiver listens.
	IngestAddr string `yaml:"ingest_addr"`

	// APIAddr is where the REST API listens.
	APIAddr string `yaml:"api_addr"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory", "sqlite" or "clickhouse".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig holds ClickHouse connection parameters.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ArchiveConfig holds report archive settings.
type ArchiveConfig struct {
	Dir         string `yaml:"dir"`
	MaxArchives int    `yaml:"max_archives"`
}

// AnalysisConfig holds the drift detection thresholds and client weights.
type AnalysisConfig struct {
	// TypeConfidence is the dominant-share threshold below which a field
	// with several observed types is flagged as ambiguous.
	TypeConfidence float64 `yaml:"type_confidence"`

	// ClientCriticality maps client IDs to a 0..1 business criticality
	// weight. Unknown clients get a low default weight.
	ClientCriticality map[string]float64 `yaml:"client_criticality"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Config is the top-level service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			IngestAddr: DefaultIngestAddr,
			APIAddr:    DefaultAPIAddr,
		},
		Storage: StorageConfig{
			Backend:    "memory",
			SQLitePath: "./data/driftwatch.db",
			ClickHouse: ClickHouseConfig{
				Addr:     "localhost:9000",
				Database: "default",
				Username: "default",
			},
		},
		Archive: ArchiveConfig{
			Dir:         "./data/archives",
			MaxArchives: 50,
		},
		Analysis: AnalysisConfig{
			TypeConfidence: drift.DefaultTypeConfidence,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration file at path, falling back to defaults when
// path is empty, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "memory", "sqlite", "clickhouse":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Analysis.TypeConfidence < 0 || c.Analysis.TypeConfidence > 1 {
		return fmt.Errorf("type_confidence must be in [0,1], got %g", c.Analysis.TypeConfidence)
	}

	for client, weight := range c.Analysis.ClientCriticality {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("criticality for client %q must be in [0,1], got %g", client, weight)
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides lets deployment environments override file settings.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.IngestAddr = getEnvOrDefault("DW_INGEST_ADDR", cfg.Server.IngestAddr)
	cfg.Server.APIAddr = getEnvOrDefault("DW_API_ADDR", cfg.Server.APIAddr)

	cfg.Storage.Backend = getEnvOrDefault("DW_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.SQLitePath = getEnvOrDefault("DW_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.ClickHouse.Addr = getEnvOrDefault("DW_CLICKHOUSE_ADDR", cfg.Storage.ClickHouse.Addr)
	cfg.Storage.ClickHouse.Database = getEnvOrDefault("DW_CLICKHOUSE_DATABASE", cfg.Storage.ClickHouse.Database)
	cfg.Storage.ClickHouse.Username = getEnvOrDefault("DW_CLICKHOUSE_USERNAME", cfg.Storage.ClickHouse.Username)
	cfg.Storage.ClickHouse.Password = getEnvOrDefault("DW_CLICKHOUSE_PASSWORD", cfg.Storage.ClickHouse.Password)

	cfg.Archive.Dir = getEnvOrDefault("DW_ARCHIVE_DIR", cfg.Archive.Dir)
	cfg.Archive.MaxArchives = getEnvIntOrDefault("DW_MAX_ARCHIVES", cfg.Archive.MaxArchives)

	cfg.Logging.Level = getEnvOrDefault("DW_LOG_LEVEL", cfg.Logging.Level)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
