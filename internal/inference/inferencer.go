package inference

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// ErrMalformedRecord marks a traffic record that could not be ingested.
// Malformed records are skipped and counted, never fatal to the accumulator.
var ErrMalformedRecord = errors.New("malformed traffic record")

// LostWindowError reports an accumulator reset that would discard
// observations without a flush. This is an integration error: windows close
// only through Flush.
type LostWindowError struct {
	Endpoint     string
	Observations int64
}

func (e *LostWindowError) Error() string {
	return fmt.Sprintf("window for %s reset without flush, %d observations would be lost", e.Endpoint, e.Observations)
}

// accumulator is the mutable per-endpoint window state. Updates hold the
// accumulator's own mutex, so unrelated endpoints never serialize on each
// other.
type accumulator struct {
	mu sync.Mutex

	// closed is set under mu by Flush; writers that raced the swap see it
	// and retry against the fresh accumulator.
	closed bool

	start       time.Time
	total       int64
	fields      map[string]*models.FieldStats
	statusCodes map[int]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{
		start:       time.Now().UTC(),
		fields:      make(map[string]*models.FieldStats),
		statusCodes: make(map[int]struct{}),
	}
}

// Inferencer aggregates traffic records into observed schemas. Safe for
// concurrent use by multiple ingestion workers.
type Inferencer struct {
	mu        sync.RWMutex
	endpoints map[string]*accumulator

	metrics *Metrics
	logger  *zap.Logger
}

// New creates an Inferencer. Both metrics and logger may be nil.
func New(metrics *Metrics, logger *zap.Logger) *Inferencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inferencer{
		endpoints: make(map[string]*accumulator),
		metrics:   metrics,
		logger:    logger,
	}
}

// Observe folds one traffic record into the endpoint's current window.
// Malformed records return ErrMalformedRecord (wrapped) and leave the
// accumulator untouched.
func (i *Inferencer) Observe(rec models.TrafficRecord) error {
	if rec.Endpoint == "" {
		i.countMalformed("")
		return fmt.Errorf("%w: missing endpoint", ErrMalformedRecord)
	}
	if len(rec.Payload) == 0 {
		i.countMalformed(rec.Endpoint)
		return fmt.Errorf("%w: empty payload for %s", ErrMalformedRecord, rec.Endpoint)
	}

	value, err := models.ParsePayload(rec.Payload)
	if err != nil {
		i.countMalformed(rec.Endpoint)
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	facts := flatten(value)

	for {
		acc := i.accumulatorFor(rec.Endpoint)
		acc.mu.Lock()
		if acc.closed {
			// Lost the race against a flush; the fresh accumulator owns
			// this record.
			acc.mu.Unlock()
			continue
		}

		acc.total++
		if rec.StatusCode != 0 {
			acc.statusCodes[rec.StatusCode] = struct{}{}
		}
		for path, fact := range facts {
			stats, ok := acc.fields[path]
			if !ok {
				stats = models.NewFieldStats()
				acc.fields[path] = stats
			}
			stats.Present++
			stats.TypeCounts[fact.representativeTag()]++
			if fact.sawNull {
				stats.Nulls++
			}
			if fact.hasSample && len(stats.Samples) < models.MaxFieldSamples {
				stats.Samples = append(stats.Samples, fact.sample)
			}
		}
		acc.mu.Unlock()
		break
	}

	if i.metrics != nil {
		i.metrics.RecordsObserved.WithLabelValues(rec.Endpoint).Inc()
	}
	return nil
}

// Snapshot returns a consistent copy of the endpoint's in-progress window
// without closing it. The copy is safe to read after further observations.
func (i *Inferencer) Snapshot(endpoint string) *models.ObservedSchema {
	i.mu.RLock()
	acc := i.endpoints[endpoint]
	i.mu.RUnlock()

	if acc == nil {
		return emptySchema(endpoint)
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.snapshotLocked(endpoint)
}

// Flush atomically closes the endpoint's window and returns its snapshot.
// Records arriving after the swap land in a fresh accumulator; records that
// raced the swap retry and are never lost or double-counted.
func (i *Inferencer) Flush(endpoint string) *models.ObservedSchema {
	i.mu.Lock()
	acc := i.endpoints[endpoint]
	delete(i.endpoints, endpoint)
	i.mu.Unlock()

	if acc == nil {
		return emptySchema(endpoint)
	}

	acc.mu.Lock()
	acc.closed = true
	snap := acc.snapshotLocked(endpoint)
	acc.mu.Unlock()

	if i.metrics != nil {
		i.metrics.WindowsFlushed.WithLabelValues(endpoint).Inc()
	}
	i.logger.Debug("window flushed",
		zap.String("endpoint", endpoint),
		zap.Int64("records", snap.TotalCount),
		zap.Int("fields", len(snap.Fields)),
	)
	return snap
}

// FlushAll closes every open window and returns the snapshots sorted by
// endpoint id.
func (i *Inferencer) FlushAll() []*models.ObservedSchema {
	i.mu.Lock()
	endpoints := make([]string, 0, len(i.endpoints))
	for ep := range i.endpoints {
		endpoints = append(endpoints, ep)
	}
	i.mu.Unlock()
	sort.Strings(endpoints)

	snaps := make([]*models.ObservedSchema, 0, len(endpoints))
	for _, ep := range endpoints {
		snaps = append(snaps, i.Flush(ep))
	}
	return snaps
}

// Endpoints lists the endpoints with an open window, sorted.
func (i *Inferencer) Endpoints() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	endpoints := make([]string, 0, len(i.endpoints))
	for ep := range i.endpoints {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	return endpoints
}

// Discard drops the endpoint's window without producing a snapshot. It fails
// with LostWindowError when the window holds observations: silent resets are
// never allowed.
func (i *Inferencer) Discard(endpoint string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	acc := i.endpoints[endpoint]
	if acc == nil {
		return nil
	}

	// Hold acc.mu across the decision: a writer that fetched this
	// accumulator before the registry lock must either land its record
	// before the emptiness check or see closed and retry against a fresh
	// accumulator, exactly as with Flush.
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.total > 0 {
		return &LostWindowError{Endpoint: endpoint, Observations: acc.total}
	}
	acc.closed = true
	delete(i.endpoints, endpoint)
	return nil
}

// accumulatorFor returns the endpoint's live accumulator, creating it when
// missing.
func (i *Inferencer) accumulatorFor(endpoint string) *accumulator {
	i.mu.RLock()
	acc := i.endpoints[endpoint]
	i.mu.RUnlock()
	if acc != nil {
		return acc
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if acc = i.endpoints[endpoint]; acc == nil {
		acc = newAccumulator()
		i.endpoints[endpoint] = acc
	}
	return acc
}

func (i *Inferencer) countMalformed(endpoint string) {
	if i.metrics != nil {
		i.metrics.RecordsMalformed.WithLabelValues(endpoint).Inc()
	}
}

// snapshotLocked deep-copies the accumulator state. Caller holds acc.mu.
func (a *accumulator) snapshotLocked(endpoint string) *models.ObservedSchema {
	fields := make(map[string]*models.FieldStats, len(a.fields))
	for path, stats := range a.fields {
		copied := &models.FieldStats{
			TypeCounts: make(map[models.TypeTag]int64, len(stats.TypeCounts)),
			Present:    stats.Present,
			Nulls:      stats.Nulls,
			Samples:    append([]string(nil), stats.Samples...),
		}
		for tag, count := range stats.TypeCounts {
			copied.TypeCounts[tag] = count
		}
		fields[path] = copied
	}

	codes := make([]int, 0, len(a.statusCodes))
	for code := range a.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	return &models.ObservedSchema{
		Endpoint:    endpoint,
		TotalCount:  a.total,
		Fields:      fields,
		StatusCodes: codes,
		WindowStart: a.start,
		WindowEnd:   time.Now().UTC(),
	}
}

func emptySchema(endpoint string) *models.ObservedSchema {
	now := time.Now().UTC()
	return &models.ObservedSchema{
		Endpoint:    endpoint,
		Fields:      make(map[string]*models.FieldStats),
		WindowStart: now,
		WindowEnd:   now,
	}
}
