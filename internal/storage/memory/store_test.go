package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/pkg/models"
)

func snap(endpoint string, total int64, end time.Time) *models.ObservedSchema {
	return &models.ObservedSchema{
		Endpoint:    endpoint,
		TotalCount:  total,
		Fields:      make(map[string]*models.FieldStats),
		WindowStart: end.Add(-time.Minute),
		WindowEnd:   end,
	}
}

func TestSnapshots_SaveGetList(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.SaveSnapshot(ctx, snap("GET /a", 1, now.Add(-time.Hour))); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := store.SaveSnapshot(ctx, snap("GET /a", 2, now)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := store.SaveSnapshot(ctx, snap("GET /b", 3, now)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	// GetSnapshot returns the most recent window.
	latest, err := store.GetSnapshot(ctx, "GET /a")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if latest.TotalCount != 2 {
		t.Errorf("latest.TotalCount = %d, want 2", latest.TotalCount)
	}

	perEndpoint, err := store.ListSnapshots(ctx, "GET /a")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(perEndpoint) != 2 {
		t.Errorf("ListSnapshots(GET /a) = %d snapshots, want 2", len(perEndpoint))
	}

	all, err := store.ListSnapshots(ctx, "")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListSnapshots() = %d snapshots, want 3", len(all))
	}
}

func TestSnapshots_NotFound(t *testing.T) {
	store := New()
	_, err := store.GetSnapshot(context.Background(), "GET /missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshots_Validation(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SaveSnapshot(ctx, nil); err == nil {
		t.Error("nil snapshot accepted")
	}
	if err := store.SaveSnapshot(ctx, &models.ObservedSchema{}); err == nil {
		t.Error("snapshot without endpoint accepted")
	}
}

func TestReports_SaveGetList(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	older := &models.AnalysisReport{ID: "r-1", GeneratedAt: now.Add(-time.Hour)}
	newer := &models.AnalysisReport{ID: "r-2", GeneratedAt: now}
	for _, rep := range []*models.AnalysisReport{older, newer} {
		if err := store.SaveReport(ctx, rep); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	got, err := store.GetReport(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.ID != "r-1" {
		t.Errorf("ID = %q, want r-1", got.ID)
	}

	if _, err := store.GetReport(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	infos, err := store.ListReports(ctx)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d reports, want 2", len(infos))
	}
	// Newest first.
	if infos[0].ID != "r-2" || infos[1].ID != "r-1" {
		t.Errorf("order = [%s %s], want [r-2 r-1]", infos[0].ID, infos[1].ID)
	}
}

func TestClear(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SaveSnapshot(ctx, snap("GET /a", 1, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveReport(ctx, &models.AnalysisReport{ID: "r-1"}); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := store.GetSnapshot(ctx, "GET /a"); !errors.Is(err, models.ErrNotFound) {
		t.Error("snapshots survived Clear")
	}
	if _, err := store.GetReport(ctx, "r-1"); !errors.Is(err, models.ErrNotFound) {
		t.Error("reports survived Clear")
	}
}
