// Package metrics provides Prometheus instrumentation for dropwatch.
//
// Collectors are registered on the default registry at package init through
// promauto and are served by the status API on /metrics. All metric names are
// prefixed with "dropwatch_".
//
// # Metric Categories
//
//   - Baseline scan: runs, duration, classification counts of the last scan
//   - Live watcher: native events, errors, active strategy, re-enumeration
//     passes and completeness-check outcomes
//   - Output stream: emitted and dropped records, buffer depth
//   - Store: operation outcomes and known file count
//   - HTTP: status API requests
package metrics
