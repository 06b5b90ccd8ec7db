package models

import (
	"sort"
	"time"
)

// MaxFieldSamples bounds the example values kept per field path.
const MaxFieldSamples = 3

// FieldStats holds the per-window counters for one field path.
type FieldStats struct {
	// TypeCounts is the observation count per type tag. Explicit nulls are
	// counted under TypeNull in addition to the Nulls counter.
	TypeCounts map[TypeTag]int64 `json:"type_counts"`

	// Present is the number of records in which the path occurred,
	// including as an explicit null.
	Present int64 `json:"present"`

	// Nulls is the number of records in which the path was an explicit null.
	Nulls int64 `json:"nulls"`

	// Samples contains up to MaxFieldSamples example values.
	Samples []string `json:"samples,omitempty"`
}

// NewFieldStats creates an empty stats record.
func NewFieldStats() *FieldStats {
	return &FieldStats{
		TypeCounts: make(map[TypeTag]int64),
		Samples:    make([]string, 0, MaxFieldSamples),
	}
}

// DominantType returns the type tag with the highest count and its share of
// all typed observations. Ties break on lexicographic tag order so repeated
// snapshots of the same window agree.
func (f *FieldStats) DominantType() (TypeTag, float64) {
	var total int64
	for _, c := range f.TypeCounts {
		total += c
	}
	if total == 0 {
		return "", 0
	}

	tags := make([]TypeTag, 0, len(f.TypeCounts))
	for tag := range f.TypeCounts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	var best TypeTag
	var bestCount int64 = -1
	for _, tag := range tags {
		if f.TypeCounts[tag] > bestCount {
			best = tag
			bestCount = f.TypeCounts[tag]
		}
	}
	return best, float64(bestCount) / float64(total)
}

// ObservedSchema is the statistical shape of an endpoint inferred from one
// observation window. Snapshots are immutable once produced by a flush.
type ObservedSchema struct {
	// Endpoint identifies the operation, e.g. "GET /eligibility".
	Endpoint string `json:"endpoint"`

	// TotalCount is the number of records observed for the endpoint in the
	// window.
	TotalCount int64 `json:"total_count"`

	// Fields maps dot-addressed field paths to their counters.
	Fields map[string]*FieldStats `json:"fields"`

	// StatusCodes lists the distinct HTTP status codes seen, ascending.
	StatusCodes []int `json:"status_codes,omitempty"`

	// WindowStart and WindowEnd bound the observation window.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// PresenceRate returns the fraction of records in which the path occurred.
// Always in [0,1]; zero when the endpoint saw no traffic.
func (s *ObservedSchema) PresenceRate(path string) float64 {
	if s.TotalCount == 0 {
		return 0
	}
	stats, ok := s.Fields[path]
	if !ok {
		return 0
	}
	return float64(stats.Present) / float64(s.TotalCount)
}

// NullableRate returns the fraction of the path's occurrences that were
// explicit nulls.
func (s *ObservedSchema) NullableRate(path string) float64 {
	stats, ok := s.Fields[path]
	if !ok || stats.Present == 0 {
		return 0
	}
	return float64(stats.Nulls) / float64(stats.Present)
}

// FieldPaths returns all observed paths in lexicographic order.
func (s *ObservedSchema) FieldPaths() []string {
	paths := make([]string, 0, len(s.Fields))
	for p := range s.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
