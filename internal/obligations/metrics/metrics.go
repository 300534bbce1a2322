package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the obligation engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	Repairs          *prometheus.CounterVec
	StoreAttempts    *prometheus.CounterVec
	VerifyMismatches prometheus.Counter
	Saves            *prometheus.CounterVec
	StoreDuration    *prometheus.HistogramVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscus_cache_lookups_total",
			Help: "Freshness cache lookups by result (hit, miss, stale)",
		}, []string{"result"}),
		Repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscus_migration_repairs_total",
			Help: "Fields coerced or repaired while migrating persisted records",
		}, []string{"reason"}),
		StoreAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscus_store_attempts_total",
			Help: "Remote store calls by operation and outcome",
		}, []string{"op", "outcome"}),
		VerifyMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "fiscus_verify_mismatches_total",
			Help: "Read-back verifications that diverged from the written record",
		}),
		Saves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscus_saves_total",
			Help: "Save protocol outcomes (confirmed, failed, abandoned)",
		}, []string{"outcome"}),
		StoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fiscus_store_duration_seconds",
			Help:    "Latency of a single remote store call",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRepair(reason string) {
	if m == nil {
		return
	}
	m.Repairs.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordStoreAttempt(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.StoreAttempts.WithLabelValues(op, outcome).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) IncrementVerifyMismatch() {
	if m == nil {
		return
	}
	m.VerifyMismatches.Inc()
}

func (m *Metrics) RecordSave(outcome string) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(outcome).Inc()
}
