// Package storage defines the persistence interface for window snapshots
// and analysis reports.
package storage

import (
	"context"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// Store persists observed-schema snapshots and analysis reports.
// Implementations must be safe for concurrent use.
type Store interface {
	// Snapshot operations. SaveSnapshot appends; GetSnapshot returns the
	// most recent window for the endpoint.
	SaveSnapshot(ctx context.Context, snap *models.ObservedSchema) error
	GetSnapshot(ctx context.Context, endpoint string) (*models.ObservedSchema, error)
	ListSnapshots(ctx context.Context, endpoint string) ([]*models.ObservedSchema, error)

	// Report operations.
	SaveReport(ctx context.Context, rep *models.AnalysisReport) error
	GetReport(ctx context.Context, id string) (*models.AnalysisReport, error)
	ListReports(ctx context.Context) ([]models.ReportInfo, error)

	// Clear removes all stored data.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
