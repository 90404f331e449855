// Package store persists the known-file set and scan metadata that let the
// tracker classify files across restarts.
//
// FileStore is the default backend and writes a small line-oriented text file
// atomically; SQLiteStore offers the same contract on modernc.org/sqlite for
// very large directories. Both treat unreadable state as empty and log, rather
// than return, write failures.
package store
