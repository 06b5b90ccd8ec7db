package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/storage/clickhouse"
	"github.com/driftwatch/driftwatch/internal/storage/memory"
	"github.com/driftwatch/driftwatch/internal/storage/sqlite"
)

// Config selects and configures the storage backend.
type Config struct {
	// Backend is "memory", "sqlite" or "clickhouse".
	Backend string

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string

	// ClickHouse connection parameters.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            "memory",
		SQLitePath:         "./data/driftwatch.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUsername: "default",
	}
}

// NewStore builds the store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case "", "memory":
		logger.Info("using in-memory storage")
		return memory.New(), nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		return store, nil
	case "clickhouse":
		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Database = cfg.ClickHouseDatabase
		chCfg.Username = cfg.ClickHouseUsername
		chCfg.Password = cfg.ClickHousePassword
		store, err := clickhouse.New(ctx, chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to clickhouse: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
