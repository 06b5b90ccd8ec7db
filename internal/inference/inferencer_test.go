package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/driftwatch/driftwatch/pkg/models"
)

func trafficRecord(endpoint, payload string) models.TrafficRecord {
	return models.TrafficRecord{
		Endpoint: endpoint,
		Payload:  json.RawMessage(payload),
	}
}

func TestObserve_CountsPresenceAndTypes(t *testing.T) {
	inf := New(nil, nil)

	payloads := []string{
		`{"id":1,"name":"a"}`,
		`{"id":2,"name":"b"}`,
		`{"id":"three"}`,
		`{"id":4,"name":null}`,
	}
	for _, p := range payloads {
		if err := inf.Observe(trafficRecord("GET /things", p)); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}

	snap := inf.Snapshot("GET /things")
	if snap.TotalCount != 4 {
		t.Fatalf("TotalCount = %d, want 4", snap.TotalCount)
	}

	id := snap.Fields["id"]
	if id.Present != 4 {
		t.Errorf("id.Present = %d, want 4", id.Present)
	}
	if id.TypeCounts[models.TypeNumber] != 3 || id.TypeCounts[models.TypeString] != 1 {
		t.Errorf("id.TypeCounts = %v, want number:3 string:1", id.TypeCounts)
	}

	name := snap.Fields["name"]
	if name.Present != 3 {
		t.Errorf("name.Present = %d, want 3", name.Present)
	}
	if name.Nulls != 1 {
		t.Errorf("name.Nulls = %d, want 1", name.Nulls)
	}

	if got := snap.PresenceRate("name"); got != 0.75 {
		t.Errorf("PresenceRate(name) = %g, want 0.75", got)
	}
}

func TestObserve_TypeCountsBoundedByRecords(t *testing.T) {
	inf := New(nil, nil)

	// Each record has three array elements of different types; the element
	// path must still count once per record.
	for i := 0; i < 5; i++ {
		err := inf.Observe(trafficRecord("GET /mixed", `{"v":[1,"x",true]}`))
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}

	snap := inf.Snapshot("GET /mixed")
	stats := snap.Fields["v[]"]
	var sum int64
	for _, c := range stats.TypeCounts {
		sum += c
	}
	if sum > snap.TotalCount {
		t.Errorf("type count sum %d exceeds total records %d", sum, snap.TotalCount)
	}
	if stats.Present != 5 {
		t.Errorf("v[].Present = %d, want 5", stats.Present)
	}
}

func TestObserve_MalformedRecords(t *testing.T) {
	inf := New(nil, nil)

	tests := []struct {
		name string
		rec  models.TrafficRecord
	}{
		{"missing endpoint", trafficRecord("", `{}`)},
		{"empty payload", models.TrafficRecord{Endpoint: "GET /x"}},
		{"invalid json", trafficRecord("GET /x", `{"broken`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inf.Observe(tt.rec)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("err = %v, want ErrMalformedRecord", err)
			}
		})
	}

	// Malformed records never open or touch a window.
	if snap := inf.Snapshot("GET /x"); snap.TotalCount != 0 {
		t.Errorf("TotalCount = %d after malformed records, want 0", snap.TotalCount)
	}
}

func TestFlush_ClosesWindow(t *testing.T) {
	inf := New(nil, nil)
	if err := inf.Observe(trafficRecord("GET /a", `{"x":1}`)); err != nil {
		t.Fatal(err)
	}

	snap := inf.Flush("GET /a")
	if snap.TotalCount != 1 {
		t.Fatalf("flushed TotalCount = %d, want 1", snap.TotalCount)
	}

	// The next record lands in a fresh window.
	if err := inf.Observe(trafficRecord("GET /a", `{"x":2}`)); err != nil {
		t.Fatal(err)
	}
	fresh := inf.Snapshot("GET /a")
	if fresh.TotalCount != 1 {
		t.Errorf("fresh window TotalCount = %d, want 1", fresh.TotalCount)
	}
	if !fresh.WindowStart.Before(fresh.WindowEnd) && !fresh.WindowStart.Equal(fresh.WindowEnd) {
		t.Error("window bounds out of order")
	}
}

func TestFlush_ConcurrentObserversLoseNoRecords(t *testing.T) {
	inf := New(nil, nil)

	const (
		workers   = 8
		perWorker = 200
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := inf.Observe(trafficRecord("GET /busy", `{"n":1}`)); err != nil {
					t.Errorf("Observe: %v", err)
					return
				}
			}
		}()
	}

	// Flush repeatedly while observers run; every record must land in
	// exactly one snapshot.
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	var total int64
	for {
		select {
		case <-done:
			final := inf.Flush("GET /busy")
			total += final.TotalCount
			if total != workers*perWorker {
				t.Errorf("total observed = %d, want %d", total, workers*perWorker)
			}
			return
		default:
			snap := inf.Flush("GET /busy")
			total += snap.TotalCount
		}
	}
}

func TestFlushAll_SortedByEndpoint(t *testing.T) {
	inf := New(nil, nil)
	for _, ep := range []string{"GET /z", "GET /a", "POST /m"} {
		if err := inf.Observe(trafficRecord(ep, `{"ok":true}`)); err != nil {
			t.Fatal(err)
		}
	}

	snaps := inf.FlushAll()
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	want := []string{"GET /a", "GET /z", "POST /m"}
	for i, snap := range snaps {
		if snap.Endpoint != want[i] {
			t.Errorf("snaps[%d].Endpoint = %q, want %q", i, snap.Endpoint, want[i])
		}
	}

	if eps := inf.Endpoints(); len(eps) != 0 {
		t.Errorf("endpoints after FlushAll = %v, want none", eps)
	}
}

func TestDiscard_RefusesToDropObservations(t *testing.T) {
	inf := New(nil, nil)
	if err := inf.Observe(trafficRecord("GET /a", `{"x":1}`)); err != nil {
		t.Fatal(err)
	}

	err := inf.Discard("GET /a")
	var lost *LostWindowError
	if !errors.As(err, &lost) {
		t.Fatalf("err = %v, want LostWindowError", err)
	}
	if lost.Endpoint != "GET /a" || lost.Observations != 1 {
		t.Errorf("LostWindowError = %+v", lost)
	}

	// The window survived intact.
	if snap := inf.Snapshot("GET /a"); snap.TotalCount != 1 {
		t.Errorf("TotalCount = %d after refused discard, want 1", snap.TotalCount)
	}

	// Empty and unknown windows discard cleanly.
	if err := inf.Discard("GET /missing"); err != nil {
		t.Errorf("Discard of unknown endpoint: %v", err)
	}
}

func TestDiscard_ConcurrentObserversLoseNoRecords(t *testing.T) {
	inf := New(nil, nil)

	const (
		workers   = 4
		perWorker = 300
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := inf.Observe(trafficRecord("GET /churn", `{"n":1}`)); err != nil {
					t.Errorf("Observe: %v", err)
					return
				}
			}
		}()
	}

	// Race discards and flushes against the observers. A discard may only
	// succeed on an empty window; any record it races must either land
	// before the emptiness check or retry into a fresh accumulator, so
	// every accepted record shows up in exactly one flush.
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	var total int64
	for {
		select {
		case <-done:
			total += inf.Flush("GET /churn").TotalCount
			if total != workers*perWorker {
				t.Errorf("total observed = %d, want %d", total, workers*perWorker)
			}
			return
		default:
			_ = inf.Discard("GET /churn")
			total += inf.Flush("GET /churn").TotalCount
		}
	}
}

func TestObserve_SamplesBounded(t *testing.T) {
	inf := New(nil, nil)
	for i := 0; i < 10; i++ {
		payload := fmt.Sprintf(`{"v":"sample-%d"}`, i)
		if err := inf.Observe(trafficRecord("GET /s", payload)); err != nil {
			t.Fatal(err)
		}
	}

	snap := inf.Snapshot("GET /s")
	if got := len(snap.Fields["v"].Samples); got != models.MaxFieldSamples {
		t.Errorf("samples = %d, want %d", got, models.MaxFieldSamples)
	}
}

func TestSnapshot_CopyIsIsolated(t *testing.T) {
	inf := New(nil, nil)
	if err := inf.Observe(trafficRecord("GET /iso", `{"x":1}`)); err != nil {
		t.Fatal(err)
	}

	snap := inf.Snapshot("GET /iso")
	if err := inf.Observe(trafficRecord("GET /iso", `{"x":2}`)); err != nil {
		t.Fatal(err)
	}

	if snap.TotalCount != 1 {
		t.Errorf("earlier snapshot mutated: TotalCount = %d, want 1", snap.TotalCount)
	}
	if snap.Fields["x"].Present != 1 {
		t.Errorf("earlier snapshot mutated: Present = %d, want 1", snap.Fields["x"].Present)
	}
}
