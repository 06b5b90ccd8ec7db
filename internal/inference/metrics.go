package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ingestion-side Prometheus counters.
type Metrics struct {
	RecordsObserved  *prometheus.CounterVec
	RecordsMalformed *prometheus.CounterVec
	WindowsFlushed   *prometheus.CounterVec
}

// NewMetrics registers the ingestion counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RecordsObserved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_records_observed_total",
			Help: "Traffic records folded into an observation window.",
		}, []string{"endpoint"}),
		RecordsMalformed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_records_malformed_total",
			Help: "Traffic records skipped because they could not be decoded.",
		}, []string{"endpoint"}),
		WindowsFlushed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_windows_flushed_total",
			Help: "Observation windows closed by an explicit flush.",
		}, []string{"endpoint"}),
	}
}
