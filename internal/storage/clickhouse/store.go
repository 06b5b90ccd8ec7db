package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/pkg/models"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS drift_snapshots (
		endpoint     String,
		window_start DateTime64(9, 'UTC'),
		window_end   DateTime64(9, 'UTC'),
		total_count  Int64,
		data         String
	) ENGINE = MergeTree()
	ORDER BY (endpoint, window_end)`,

	`CREATE TABLE IF NOT EXISTS drift_reports (
		id               String,
		generated_at     DateTime64(9, 'UTC'),
		contract_version String,
		total_issues     Int32,
		critical_issues  Int32,
		high_issues      Int32,
		endpoints        Int32,
		data             String
	) ENGINE = ReplacingMergeTree()
	ORDER BY id`,
}

// Store is a ClickHouse-backed store. Snapshots and reports are append-only
// rows, which keeps the full drift history queryable.
type Store struct {
	conn   driver.Conn
	logger *zap.Logger
}

// New connects to ClickHouse and creates the schema if missing.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, stmt := range ddl {
		if err := conn.Exec(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("creating ClickHouse schema: %w", err)
		}
	}

	logger.Info("connected to ClickHouse", zap.String("addr", cfg.Addr), zap.String("database", cfg.Database))
	return &Store{conn: conn, logger: logger}, nil
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

	err = s.conn.Exec(ctx,
		`INSERT INTO drift_snapshots (endpoint, window_start, window_end, total_count, data)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.Endpoint, snap.WindowStart.UTC(), snap.WindowEnd.UTC(), snap.TotalCount, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the most recent window snapshot for an endpoint.
func (s *Store) GetSnapshot(ctx context.Context, endpoint string) (*models.ObservedSchema, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT data FROM drift_snapshots WHERE endpoint = ? ORDER BY window_end DESC LIMIT 1`,
		endpoint,
	)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot for %s: %w", endpoint, models.ErrNotFound)
		}
		return nil, fmt.Errorf("querying snapshot for %s: %w", endpoint, err)
	}

	var snap models.ObservedSchema
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns snapshots ordered by endpoint then window,
// optionally filtered by endpoint.
func (s *Store) ListSnapshots(ctx context.Context, endpoint string) ([]*models.ObservedSchema, error) {
	query := `SELECT data FROM drift_snapshots ORDER BY endpoint, window_end`
	args := []any{}
	if endpoint != "" {
		query = `SELECT data FROM drift_snapshots WHERE endpoint = ? ORDER BY window_end`
		args = append(args, endpoint)
	}

	rows, err := s.conn.Query(ctx, query, args...)
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
		var snap models.ObservedSchema
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
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

	err = s.conn.Exec(ctx,
		`INSERT INTO drift_reports
		 (id, generated_at, contract_version, total_issues, critical_issues, high_issues, endpoints, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.GeneratedAt.UTC(), rep.ContractVersion,
		int32(rep.Summary.TotalIssues), int32(rep.Summary.CriticalIssues),
		int32(rep.Summary.HighIssues), int32(rep.Summary.EndpointsAnalyzed),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*models.AnalysisReport, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT data FROM drift_reports WHERE id = ? ORDER BY generated_at DESC LIMIT 1`,
		id,
	)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("querying report %s: %w", id, err)
	}

	var rep models.AnalysisReport
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &rep, nil
}

// ListReports returns report summaries, newest first.
func (s *Store) ListReports(ctx context.Context) ([]models.ReportInfo, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, generated_at, contract_version, total_issues, critical_issues, high_issues, endpoints
		 FROM drift_reports FINAL ORDER BY generated_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var infos []models.ReportInfo
	for rows.Next() {
		var info models.ReportInfo
		var generatedAt time.Time
		var total, critical, high, endpoints int32
		if err := rows.Scan(&info.ID, &generatedAt, &info.ContractVersion, &total, &critical, &high, &endpoints); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		info.GeneratedAt = generatedAt
		info.Summary = models.ReportSummary{
			EndpointsAnalyzed: int(endpoints),
			TotalIssues:       int(total),
			CriticalIssues:    int(critical),
			HighIssues:        int(high),
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"drift_snapshots", "drift_reports"} {
		if err := s.conn.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
