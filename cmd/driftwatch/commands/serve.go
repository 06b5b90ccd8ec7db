package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/api"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/contract"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/inference"
	"github.com/driftwatch/driftwatch/internal/receiver"
	"github.com/driftwatch/driftwatch/internal/report"
	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/storage/archive"
	"github.com/driftwatch/driftwatch/internal/usage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the drift detection service",
	Long: `Starts the traffic receiver and the REST API and keeps observation
windows open until an analysis is triggered or the windows are flushed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := config.BuildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting driftwatch",
		zap.String("version", Version),
		zap.String("storage", cfg.Storage.Backend))

	ctx := cmd.Context()

	// Storage
	storageCfg := storage.Config{
		Backend:            cfg.Storage.Backend,
		SQLitePath:         cfg.Storage.SQLitePath,
		ClickHouseAddr:     cfg.Storage.ClickHouse.Addr,
		ClickHouseDatabase: cfg.Storage.ClickHouse.Database,
		ClickHouseUsername: cfg.Storage.ClickHouse.Username,
		ClickHousePassword: cfg.Storage.ClickHouse.Password,
	}
	store, err := storage.NewStore(ctx, storageCfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	archiveCfg := archive.DefaultConfig()
	if cfg.Archive.Dir != "" {
		archiveCfg.ArchiveDir = cfg.Archive.Dir
	}
	if cfg.Archive.MaxArchives > 0 {
		archiveCfg.MaxArchives = cfg.Archive.MaxArchives
	}
	archives, err := archive.NewWithConfig(archiveCfg)
	if err != nil {
		return fmt.Errorf("creating archive store: %w", err)
	}

	// Analysis pipeline
	metrics := inference.NewMetrics(prometheus.DefaultRegisterer)
	inferencer := inference.New(metrics, logger)
	contracts := contract.NewHolder()
	usageRegistry := usage.NewRegistry()
	runner := report.NewRunner(
		drift.Config{TypeConfidence: cfg.Analysis.TypeConfidence},
		cfg.Analysis.ClientCriticality,
		logger,
	)

	// Servers
	ingest := receiver.NewHTTPReceiver(cfg.Server.IngestAddr, inferencer, logger)
	apiServer := api.NewServer(cfg.Server.APIAddr, api.Deps{
		Store:      store,
		Archives:   archives,
		Contracts:  contracts,
		Inferencer: inferencer,
		Usage:      usageRegistry,
		Runner:     runner,
		Logger:     logger,
	})

	errChan := make(chan error, 2)

	go func() {
		logger.Info("starting traffic receiver", zap.String("addr", cfg.Server.IngestAddr))
		if err := ingest.Start(); err != nil {
			errChan <- fmt.Errorf("traffic receiver error: %w", err)
		}
	}()

	go func() {
		logger.Info("starting REST API server", zap.String("addr", cfg.Server.APIAddr))
		if err := apiServer.Start(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ingest.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down traffic receiver", zap.Error(err))
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down API server", zap.Error(err))
	}

	// Persist any windows still open so in-flight observations survive a
	// restart.
	for _, snap := range inferencer.FlushAll() {
		if err := store.SaveSnapshot(shutdownCtx, snap); err != nil {
			logger.Error("saving snapshot on shutdown",
				zap.String("endpoint", snap.Endpoint),
				zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("closing store", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
