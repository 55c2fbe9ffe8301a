// Package metrics provides Prometheus metrics for treeaudit
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "treeaudit"

// Metrics holds all Prometheus metrics for treeaudit. It implements the
// observer interfaces of the changes, audit and revision packages.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Change record metrics
	RecordsRenderedTotal *prometheus.CounterVec
	HandlerErrorsTotal   prometheus.Counter
	IndexCacheTotal      *prometheus.CounterVec
	FilterQueriesTotal   *prometheus.CounterVec

	// Revision store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	SnapshotCacheTotal     *prometheus.CounterVec
	SnapshotReplaysTotal   prometheus.Counter
	SnapshotReplayOps      prometheus.Histogram
	SnapshotReplayDuration prometheus.Histogram
	RevisionsTotal         prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{ServerStartTime: time.Now()}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Duration of gRPC requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_requests_in_flight",
			Help:      "Number of gRPC requests currently being processed",
		},
	)

	m.RecordsRenderedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_records_total",
			Help:      "Change records rendered, by class",
		},
		[]string{"class"},
	)

	m.HandlerErrorsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Operations that could not be described",
		},
	)

	m.IndexCacheTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_cache_lookups_total",
			Help:      "Revision record lookups, by cache result",
		},
		[]string{"result"},
	)

	m.FilterQueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_queries_total",
			Help:      "Search filter invocations, by tier",
		},
		[]string{"tier"},
	)

	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of revision store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of revision store operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.SnapshotCacheTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_lookups_total",
			Help:      "Materialized snapshot lookups, by cache result",
		},
		[]string{"result"},
	)

	m.SnapshotReplaysTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_replays_total",
			Help:      "Snapshots rebuilt by replaying patches",
		},
	)

	m.SnapshotReplayOps = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_replay_operations",
			Help:      "Patch operations applied per snapshot replay",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	m.SnapshotReplayDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_replay_duration_seconds",
			Help:      "Duration of snapshot replays in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	m.RevisionsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "revisions",
			Help:      "Committed revisions in the loaded history",
		},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge every interval until ctx is done
func (m *Metrics) RunUptime(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRendered counts one change record
func (m *Metrics) RecordRendered(class string) {
	m.RecordsRenderedTotal.WithLabelValues(class).Inc()
}

// HandlerFailed counts one operation that became an error record
func (m *Metrics) HandlerFailed() {
	m.HandlerErrorsTotal.Inc()
}

// RecordsCached counts a revision record lookup
func (m *Metrics) RecordsCached(hit bool) {
	m.IndexCacheTotal.WithLabelValues(result(hit)).Inc()
}

// FilterQuery counts a filter invocation at the given tier
func (m *Metrics) FilterQuery(tier string) {
	m.FilterQueriesTotal.WithLabelValues(tier).Inc()
}

// CacheLookup counts a materialized snapshot lookup
func (m *Metrics) CacheLookup(hit bool) {
	m.SnapshotCacheTotal.WithLabelValues(result(hit)).Inc()
}

// SnapshotReplayed records one snapshot rebuild
func (m *Metrics) SnapshotReplayed(ops int, elapsed time.Duration) {
	m.SnapshotReplaysTotal.Inc()
	m.SnapshotReplayOps.Observe(float64(ops))
	m.SnapshotReplayDuration.Observe(elapsed.Seconds())
}

// StoreOperation records a revision store operation
func (m *Metrics) StoreOperation(op string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(op, status).Inc()
	m.StoreOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetRevisions updates the revision count gauge
func (m *Metrics) SetRevisions(n int) {
	m.RevisionsTotal.Set(float64(n))
}

func result(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
