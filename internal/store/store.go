package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dropwatch/internal/config"
	"dropwatch/internal/files"
	"dropwatch/internal/logging"
)

// Metadata is the scan bookkeeping persisted next to the known-file set.
// Times are epoch milliseconds; zero means "never".
type Metadata struct {
	LastExit             int64 `json:"last_exit"`
	LastFullScanComplete int64 `json:"last_full_scan_complete"`
	KnownFileCount       int   `json:"known_file_count"`
}

// Store is the durable record of every file name the engine has reported.
//
// Reads never fail: a missing or unreadable backing store yields empty state.
// Writes never fail either; errors are logged and the engine continues with
// whatever state it has in memory.
type Store interface {
	KnownFiles(ctx context.Context) map[string]struct{}
	Metadata(ctx context.Context) Metadata
	// Update replaces both metadata and the known-file set in one write.
	Update(ctx context.Context, meta Metadata, known map[string]struct{})
	AddKnownFile(ctx context.Context, name string)
	RemoveKnownFile(ctx context.Context, name string)
	UpdateLastExit(ctx context.Context, at time.Time)
	NeedsFullRescan(ctx context.Context, interval time.Duration) bool
	Clear(ctx context.Context)
	Close() error
}

// ErrUnknownBackend is returned by Open for an unsupported store.backend.
var ErrUnknownBackend = errors.New("unknown store backend")

// Option customizes a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the wall clock used by NeedsFullRescan.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns the backend selected by cfg.Store.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (Store, error) {
	if cfg == nil {
		return nil, errors.New("store: config is nil")
	}
	path := cfg.StorePath()
	switch cfg.Store.Backend {
	case "", config.StoreBackendFile:
		return NewFileStore(path, logger, opts...), nil
	case config.StoreBackendSQLite:
		return OpenSQLite(path, logger, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}
}

// NeedsRescan reports whether the known-file set is stale: no full scan has
// ever completed, or the last one is older than interval.
func NeedsRescan(meta Metadata, now time.Time, interval time.Duration) bool {
	if meta.LastFullScanComplete == 0 {
		return true
	}
	return now.UnixMilli()-meta.LastFullScanComplete > interval.Milliseconds()
}

// storableSet copies the names of in that the store can hold. Rejected names
// are logged and left out.
func storableSet(logger *slog.Logger, in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for name := range in {
		if !files.StorableName(name) {
			warnUnstorableName(logger, name)
			continue
		}
		out[name] = struct{}{}
	}
	return out
}

func warnUnstorableName(logger *slog.Logger, name string) {
	logging.WarnWithContext(logger, "ignoring file name the store cannot hold", "store_invalid_name",
		logging.String(logging.FieldFileName, name),
		logging.String(logging.FieldImpact, "the name is not recorded as known"),
		logging.String(logging.FieldErrorHint, "names must be non-empty without slashes or line breaks"))
}

func warnWriteFailed(logger *slog.Logger, op string, err error) {
	logging.WarnWithContext(logger, "known-file state write failed", "store_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions and free space of the state directory"),
		logging.String(logging.FieldImpact, "files may be reported again after restart"))
}

func warnReadFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "known-file state unreadable; starting from empty state", "store_read_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect or delete the state file"),
		logging.String(logging.FieldImpact, "all present files will be classified as incremental"))
}
