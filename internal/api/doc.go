// Package api defines wire-format types and converters for the status HTTP
// API. It translates tracker records and status snapshots into
// transport-friendly DTOs so clients never couple to internal types.
//
// # Key Types
//
// FileRecord: transport representation of a detected file.
//
// TrackerStatus: session, cold-scan barrier, watcher and queue state.
//
// DaemonStatus: tracker status plus process, lock and store details.
//
// # Converters
//
// FromRecord/FromRecords: files.Record -> FileRecord.
//
// FromTrackerStatus: tracker.Status -> TrackerStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC; the raw epoch milliseconds are kept alongside for clients that sort.
package api
