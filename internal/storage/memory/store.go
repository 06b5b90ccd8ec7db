// Package memory provides an in-memory storage implementation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// Store is an in-memory store for snapshots and reports.
type Store struct {
	// Snapshots per endpoint, append order = window order.
	snapshots   map[string][]*models.ObservedSchema
	snapshotsmu sync.RWMutex

	// Reports by id.
	reports   map[string]*models.AnalysisReport
	reportsmu sync.RWMutex
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		snapshots: make(map[string][]*models.ObservedSchema),
		reports:   make(map[string]*models.AnalysisReport),
	}
}

// SaveSnapshot appends a window snapshot for its endpoint.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.ObservedSchema) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	if snap.Endpoint == "" {
		return errors.New("snapshot endpoint cannot be empty")
	}

	s.snapshotsmu.Lock()
	defer s.snapshotsmu.Unlock()
	s.snapshots[snap.Endpoint] = append(s.snapshots[snap.Endpoint], snap)
	return nil
}

// GetSnapshot returns the most recent window snapshot for an endpoint.
func (s *Store) GetSnapshot(ctx context.Context, endpoint string) (*models.ObservedSchema, error) {
	s.snapshotsmu.RLock()
	defer s.snapshotsmu.RUnlock()

	snaps := s.snapshots[endpoint]
	if len(snaps) == 0 {
		return nil, fmt.Errorf("snapshot for %s: %w", endpoint, models.ErrNotFound)
	}
	return snaps[len(snaps)-1], nil
}

// ListSnapshots returns all snapshots, optionally filtered by endpoint,
// ordered by endpoint then window.
func (s *Store) ListSnapshots(ctx context.Context, endpoint string) ([]*models.ObservedSchema, error) {
	s.snapshotsmu.RLock()
	defer s.snapshotsmu.RUnlock()

	if endpoint != "" {
		return append([]*models.ObservedSchema(nil), s.snapshots[endpoint]...), nil
	}

	endpoints := make([]string, 0, len(s.snapshots))
	for ep := range s.snapshots {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	var all []*models.ObservedSchema
	for _, ep := range endpoints {
		all = append(all, s.snapshots[ep]...)
	}
	return all, nil
}

// SaveReport stores an analysis report by id.
func (s *Store) SaveReport(ctx context.Context, rep *models.AnalysisReport) error {
	if rep == nil {
		return errors.New("report cannot be nil")
	}
	if rep.ID == "" {
		return errors.New("report id cannot be empty")
	}

	s.reportsmu.Lock()
	defer s.reportsmu.Unlock()
	s.reports[rep.ID] = rep
	return nil
}

// GetReport retrieves a report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*models.AnalysisReport, error) {
	s.reportsmu.RLock()
	defer s.reportsmu.RUnlock()

	rep, exists := s.reports[id]
	if !exists {
		return nil, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
	}
	return rep, nil
}

// ListReports returns report summaries, newest first.
func (s *Store) ListReports(ctx context.Context) ([]models.ReportInfo, error) {
	s.reportsmu.RLock()
	defer s.reportsmu.RUnlock()

	infos := make([]models.ReportInfo, 0, len(s.reports))
	for _, rep := range s.reports {
		infos = append(infos, rep.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].GeneratedAt.Equal(infos[j].GeneratedAt) {
			return infos[i].GeneratedAt.After(infos[j].GeneratedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	s.snapshotsmu.Lock()
	s.snapshots = make(map[string][]*models.ObservedSchema)
	s.snapshotsmu.Unlock()

	s.reportsmu.Lock()
	s.reports = make(map[string]*models.AnalysisReport)
	s.reportsmu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
