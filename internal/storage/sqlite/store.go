// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driftwatch/driftwatch/pkg/models"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// Store is a SQLite-backed store for snapshots and reports.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveSnapshot appends a window snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.ObservedSchema) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	if snap.Endpoint == "" {
		return errors.New("snapshot endpoint cannot be empty")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (endpoint, window_start, window_end, total_count, data)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.Endpoint,
		snap.WindowStart.UTC().Format(time.RFC3339Nano),
		snap.WindowEnd.UTC().Format(time.RFC3339Nano),
		snap.TotalCount,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the most recent window snapshot for an endpoint.
func (s *Store) GetSnapshot(ctx context.Context, endpoint string) (*models.ObservedSchema, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE endpoint = ? ORDER BY window_end DESC, id DESC LIMIT 1`,
		endpoint,
	)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot for %s: %w", endpoint, models.ErrNotFound)
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// ListSnapshots returns snapshots ordered by endpoint then window,
// optionally filtered by endpoint.
func (s *Store) ListSnapshots(ctx context.Context, endpoint string) ([]*models.ObservedSchema, error) {
	query := `SELECT data FROM snapshots ORDER BY endpoint, window_end, id`
	args := []any{}
	if endpoint != "" {
		query = `SELECT data FROM snapshots WHERE endpoint = ? ORDER BY window_end, id`
		args = append(args, endpoint)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.ObservedSchema
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SaveReport stores an analysis report.
func (s *Store) SaveReport(ctx context.Context, rep *models.AnalysisReport) error {
	if rep == nil {
		return errors.New("report cannot be nil")
	}
	if rep.ID == "" {
		return errors.New("report id cannot be empty")
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports
		 (id, generated_at, contract_version, total_issues, critical_issues, high_issues, endpoints, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID,
		rep.GeneratedAt.UTC().Format(time.RFC3339Nano),
		rep.ContractVersion,
		rep.Summary.TotalIssues,
		rep.Summary.CriticalIssues,
		rep.Summary.HighIssues,
		rep.Summary.EndpointsAnalyzed,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*models.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM reports WHERE id = ?`, id)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("querying report: %w", err)
	}

	var rep models.AnalysisReport
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &rep, nil
}

// ListReports returns report summaries, newest first.
func (s *Store) ListReports(ctx context.Context) ([]models.ReportInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generated_at, contract_version, total_issues, critical_issues, high_issues, endpoints
		 FROM reports ORDER BY generated_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var infos []models.ReportInfo
	for rows.Next() {
		var info models.ReportInfo
		var generatedAt string
		if err := rows.Scan(&info.ID, &generatedAt, &info.ContractVersion,
			&info.Summary.TotalIssues, &info.Summary.CriticalIssues,
			&info.Summary.HighIssues, &info.Summary.EndpointsAnalyzed); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, generatedAt); err == nil {
			info.GeneratedAt = ts
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"snapshots", "reports"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeSnapshot(data string) (*models.ObservedSchema, error) {
	var snap models.ObservedSchema
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}
