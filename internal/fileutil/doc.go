// Package fileutil holds small filesystem helpers: crash-safe file
// replacement, stat calls that ride out stale NFS handles, and filesystem
// type detection used to decide whether native change events can be trusted.
package fileutil
