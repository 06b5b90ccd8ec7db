package usage

import (
	"sync"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// Registry holds the current batch of client usage records. Usage data is
// batch-refreshed from external sources (gateway logs, registry exports),
// so uploads replace or extend the whole set rather than mutate individual
// records.
type Registry struct {
	mu      sync.RWMutex
	records []models.ClientUsageRecord
}

// NewRegistry creates an empty usage registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends records to the current batch.
func (r *Registry) Add(records []models.ClientUsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

// Replace swaps the current batch for a new one.
func (r *Registry) Replace(records []models.ClientUsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append([]models.ClientUsageRecord(nil), records...)
}

// Records returns a copy of the current batch.
func (r *Registry) Records() []models.ClientUsageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.ClientUsageRecord(nil), r.records...)
}

// Len returns the number of records in the current batch.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
