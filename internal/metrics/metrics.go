package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Baseline scan metrics
var (
	ColdScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_cold_scans_total",
			Help: "Total number of baseline scans by result (ok, failed) and whether a full rescan was forced",
		},
		[]string{"result", "forced"},
	)

	ColdScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dropwatch_cold_scan_duration_seconds",
			Help:    "Duration of baseline scans",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ColdScanFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dropwatch_cold_scan_files",
			Help: "Files classified by the last baseline scan (existing, incremental, removed)",
		},
		[]string{"class"},
	)
)

// Live watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_watcher_events_total",
			Help: "Native filesystem events received by type",
		},
		[]string{"type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropwatch_watcher_errors_total",
			Help: "Errors reported by the native watcher or directory queries",
		},
	)

	WatcherStrategy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dropwatch_watcher_strategy",
			Help: "Active live watch strategy (1 = active)",
		},
		[]string{"strategy"},
	)

	WatcherPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_watcher_passes_total",
			Help: "Directory re-enumeration passes by trigger (notify, poll) and listing method (query, walk)",
		},
		[]string{"trigger", "method"},
	)

	CompletenessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_completeness_checks_total",
			Help: "Write-completeness checks by outcome (complete, unstable, error, cancelled)",
		},
		[]string{"result"},
	)
)

// Output stream metrics
var (
	FilesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_files_emitted_total",
			Help: "Incremental files pushed to the output stream by source (baseline, live)",
		},
		[]string{"source"},
	)

	QueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropwatch_queue_dropped_total",
			Help: "Incremental files dropped because the output buffer was full",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropwatch_queue_depth",
			Help: "Records waiting in the output buffer",
		},
	)

	TrackerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropwatch_tracker_running",
			Help: "Whether a tracking session is active (1 = running)",
		},
	)
)

// Durable store metrics
var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_store_operations_total",
			Help: "Known-file store operations by operation and status (ok, error)",
		},
		[]string{"operation", "status"},
	)

	KnownFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropwatch_known_files",
			Help: "Known file count after the last store write",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropwatch_http_requests_total",
			Help: "Total number of HTTP requests to the status API",
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveStore records the outcome of a store operation.
func ObserveStore(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}

// SetStrategy marks strategy as the only active watcher strategy.
func SetStrategy(strategy string) {
	WatcherStrategy.Reset()
	if strategy != "" {
		WatcherStrategy.WithLabelValues(strategy).Set(1)
	}
}
