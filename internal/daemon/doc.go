// Package daemon coordinates the long-running dropwatch process.
//
// It wires configuration, the durable store and the tracker into a single
// lifecycle with flock-based locking so only one process tracks a given state
// directory. Start bounds the wait on the cold-scan barrier by
// tracking.cold_scan_timeout_seconds. When api.enabled is set the daemon also
// serves a small gorilla/mux HTTP API: health and readiness probes, Prometheus
// metrics, session status, the existing-file list and known/processed lookups,
// optionally guarded by a bearer token.
//
// Keep orchestration here; classification and watching live in the tracker
// and its components.
package daemon
