package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coinfeed"

// Sweep outcomes.
const (
	SweepSuccess = "success"
	SweepFailure = "failure"
	SweepSkipped = "skipped"
)

// Record drop reasons.
const (
	DropShape     = "shape"
	DropDuplicate = "duplicate"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	sweeps          *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	recordsDropped  *prometheus.CounterVec
	snapshotRecords prometheus.Gauge
	snapshotTime    prometheus.Gauge

	subscribers    prometheus.Gauge
	pushSuperseded prometheus.Counter
	pushFailures   prometheus.Counter

	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Listings sweeps by outcome.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of listings sweeps, successful or not.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Upstream records left out of a snapshot, by reason.",
		}, []string{"reason"}),
		snapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Records in the current snapshot.",
		}),
		snapshotTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_timestamp_seconds",
			Help:      "Unix time the current snapshot was fetched.",
		}),

		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Connected push subscribers.",
		}),
		pushSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_superseded_total",
			Help:      "Pending pushes replaced by a newer snapshot before delivery.",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Push writes that failed and disconnected the subscriber.",
		}),

		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Listing queries by HTTP status code.",
		}, []string{"code"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time to filter, sort and paginate one query.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sweeps,
		m.sweepDuration,
		m.recordsDropped,
		m.snapshotRecords,
		m.snapshotTime,
		m.subscribers,
		m.pushSuperseded,
		m.pushFailures,
		m.queries,
		m.queryDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (for tests and extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSweep records one sweep outcome and its duration.
func (m *Metrics) ObserveSweep(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(result).Inc()
	if result != SweepSkipped {
		m.sweepDuration.Observe(d.Seconds())
	}
}

// RecordsDropped adds n dropped records for reason.
func (m *Metrics) RecordsDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsDropped.WithLabelValues(reason).Add(float64(n))
}

// SnapshotPublished updates the current snapshot gauges.
func (m *Metrics) SnapshotPublished(records int, fetchedAt time.Time) {
	if m == nil {
		return
	}
	m.snapshotRecords.Set(float64(records))
	m.snapshotTime.Set(float64(fetchedAt.UnixMilli()) / 1000)
}

// SetSubscribers sets the connected subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// PushSuperseded counts a pending push replaced before delivery.
func (m *Metrics) PushSuperseded() {
	if m == nil {
		return
	}
	m.pushSuperseded.Inc()
}

// PushFailed counts a failed push write.
func (m *Metrics) PushFailed() {
	if m == nil {
		return
	}
	m.pushFailures.Inc()
}

// ObserveQuery records one query response.
func (m *Metrics) ObserveQuery(code string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(code).Inc()
	m.queryDuration.Observe(d.Seconds())
}
