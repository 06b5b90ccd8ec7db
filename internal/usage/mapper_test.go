package usage

import (
	"reflect"
	"testing"

	"github.com/driftwatch/driftwatch/pkg/models"
)

func TestClientsTouching_DirectAndAncestor(t *testing.T) {
	idx := Build([]models.ClientUsageRecord{
		{ClientID: "billing", Endpoint: "GET /orders", FieldPaths: []string{"total"}, CallVolume: 100},
		{ClientID: "frontend", Endpoint: "GET /orders", FieldPaths: []string{"lines"}, CallVolume: 50},
		{ClientID: "audit", Endpoint: "GET /orders", FieldPaths: []string{"id"}, CallVolume: 10},
	})

	tests := []struct {
		path string
		want []string
	}{
		{"total", []string{"billing"}},
		// Reading "lines" implies reading its descendants.
		{"lines[].sku", []string{"frontend"}},
		{"lines.note", []string{"frontend"}},
		{"id", []string{"audit"}},
		{"unrelated", nil},
	}

	for _, tt := range tests {
		got := idx.ClientsTouching("GET /orders", tt.path)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ClientsTouching(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClientsTouching_WholePayloadConsumer(t *testing.T) {
	idx := Build([]models.ClientUsageRecord{
		// No field data: assumed to read everything.
		{ClientID: "legacy", Endpoint: "GET /orders", CallVolume: 5},
		{ClientID: "billing", Endpoint: "GET /orders", FieldPaths: []string{"total"}},
	})

	got := idx.ClientsTouching("GET /orders", "anything.at.all")
	want := []string{"legacy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ClientsTouching = %v, want %v", got, want)
	}
}

func TestBuild_MergesSameClientEndpoint(t *testing.T) {
	idx := Build([]models.ClientUsageRecord{
		{ClientID: "app", Endpoint: "GET /orders", FieldPaths: []string{"id"}, CallVolume: 10},
		{ClientID: "app", Endpoint: "GET /orders", FieldPaths: []string{"total"}, CallVolume: 15},
	})

	if got := idx.CallVolume("GET /orders", "app"); got != 25 {
		t.Errorf("CallVolume = %d, want 25", got)
	}
	for _, path := range []string{"id", "total"} {
		if got := idx.ClientsTouching("GET /orders", path); len(got) != 1 {
			t.Errorf("merged client misses path %q", path)
		}
	}
}

func TestBuild_SkipsInvalidRecords(t *testing.T) {
	idx := Build([]models.ClientUsageRecord{
		{ClientID: "", Endpoint: "GET /orders", FieldPaths: []string{"id"}},
		{ClientID: "app", Endpoint: "", FieldPaths: []string{"id"}},
	})

	if eps := idx.Endpoints(); len(eps) != 0 {
		t.Errorf("invalid records indexed: %v", eps)
	}
}

func TestClientsTouching_UnknownEndpoint(t *testing.T) {
	idx := Build(nil)
	if got := idx.ClientsTouching("GET /nowhere", "field"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestRegistry_ReplaceAndAdd(t *testing.T) {
	reg := NewRegistry()
	reg.Add([]models.ClientUsageRecord{{ClientID: "a", Endpoint: "GET /x", CallVolume: 1}})
	reg.Add([]models.ClientUsageRecord{{ClientID: "b", Endpoint: "GET /x", CallVolume: 2}})
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}

	reg.Replace([]models.ClientUsageRecord{{ClientID: "c", Endpoint: "GET /y", CallVolume: 3}})
	records := reg.Records()
	if len(records) != 1 || records[0].ClientID != "c" {
		t.Errorf("Replace left %+v", records)
	}

	// The returned slice is a copy.
	records[0].ClientID = "mutated"
	if reg.Records()[0].ClientID != "c" {
		t.Error("Records returned shared backing storage")
	}
}
